package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arjun-mehta/school-erp-api/internal/models"
	appErrors "github.com/arjun-mehta/school-erp-api/pkg/errors"
)

type mockTimetableStore struct {
	detail    *models.TimetableDetail
	detailErr error

	publishErr     error
	publishedCards []models.AdmitCard
	publishCalls   int

	cancelErr   error
	cancelCalls int

	applyErr       error
	appliedChanges *models.TimetableChanges
}

func (m *mockTimetableStore) GetDetail(ctx context.Context, id string) (*models.TimetableDetail, error) {
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	return m.detail, nil
}

func (m *mockTimetableStore) PublishTx(ctx context.Context, id, publishedBy string, publishedAt time.Time, cards []models.AdmitCard) error {
	m.publishCalls++
	if m.publishErr != nil {
		return m.publishErr
	}
	m.publishedCards = cards
	return nil
}

func (m *mockTimetableStore) MarkCancelled(ctx context.Context, id string) error {
	m.cancelCalls++
	return m.cancelErr
}

func (m *mockTimetableStore) ApplyChanges(ctx context.Context, id string, changes models.TimetableChanges) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.appliedChanges = &changes
	return nil
}

type mockRosterStore struct {
	classTeacher    *models.ClassTeacher
	classTeacherErr error
	guardianIDs     []string
	guardianErr     error
	supervises      bool
	supervisesErr   error
	hasWard         bool
	hasWardErr      error
}

func (m *mockRosterStore) PrimaryClassTeacher(ctx context.Context, unitID, yearID string) (*models.ClassTeacher, error) {
	if m.classTeacherErr != nil {
		return nil, m.classTeacherErr
	}
	return m.classTeacher, nil
}

func (m *mockRosterStore) GuardianUserIDs(ctx context.Context, studentIDs []string) ([]string, error) {
	if m.guardianErr != nil {
		return nil, m.guardianErr
	}
	return m.guardianIDs, nil
}

func (m *mockRosterStore) TeacherSupervisesTimetable(ctx context.Context, teacherID, timetableID string) (bool, error) {
	if m.supervisesErr != nil {
		return false, m.supervisesErr
	}
	return m.supervises, nil
}

func (m *mockRosterStore) GuardianHasWardInUnit(ctx context.Context, guardianID, unitID string) (bool, error) {
	if m.hasWardErr != nil {
		return false, m.hasWardErr
	}
	return m.hasWard, nil
}

type mockAccessStore struct {
	profile *models.AccessProfile
	err     error
}

func (m *mockAccessStore) AccessProfile(ctx context.Context, userID string) (*models.AccessProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.profile, nil
}

type mockTimetableNotifier struct {
	err       error
	userIDs   []string
	event     models.TimetableEventType
	details   models.TimetableDetails
	callCount int
}

func (m *mockTimetableNotifier) SendExamTimetableNotification(ctx context.Context, timetableID string, userIDs []string, event models.TimetableEventType, details models.TimetableDetails) (int, error) {
	m.callCount++
	m.userIDs = userIDs
	m.event = event
	m.details = details
	if m.err != nil {
		return 0, m.err
	}
	return len(userIDs), nil
}

type mockTimetableAuditor struct {
	published int
	updated   int
	cancelled int
	oldValue  interface{}
	newValue  interface{}
}

func (m *mockTimetableAuditor) TimetablePublished(ctx context.Context, schoolID, timetableID, userID string, newValue interface{}) {
	m.published++
	m.newValue = newValue
}

func (m *mockTimetableAuditor) TimetableUpdated(ctx context.Context, schoolID, timetableID, userID string, oldValue, newValue interface{}) {
	m.updated++
	m.oldValue = oldValue
	m.newValue = newValue
}

func (m *mockTimetableAuditor) TimetableCancelled(ctx context.Context, schoolID, timetableID, userID string, oldValue interface{}) {
	m.cancelled++
	m.oldValue = oldValue
}

func strPtr(s string) *string { return &s }

// fixtureDetail builds a draft timetable with three active students (one
// without a login), two exam slots sharing one supervisor, and display
// names for admit cards.
func fixtureDetail() *models.TimetableDetail {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return &models.TimetableDetail{
		Timetable: models.ExamTimetable{
			ID:             "tt-1",
			SchoolID:       "sch-1",
			ExamName:       "Half Yearly Examination",
			Status:         models.TimetableStatusDraft,
			StartDate:      start,
			EndDate:        start.AddDate(0, 0, 5),
			AcademicUnitID: "unit-10a",
			AcademicYearID: "ay-2026",
		},
		Slots: []models.ExamTimetableSlot{
			{ID: "slot-1", TimetableID: "tt-1", Type: models.SlotTypeExam, SubjectName: "Mathematics", SupervisorUserID: strPtr("user-sup"), StartsAt: start.Add(9 * time.Hour)},
			{ID: "slot-2", TimetableID: "tt-1", Type: models.SlotTypeExam, SubjectName: "Physics", SupervisorUserID: strPtr("user-sup"), StartsAt: start.Add(33 * time.Hour)},
		},
		Students: []models.Student{
			{ID: "stu-1", UserID: strPtr("user-stu-1"), FullName: "Asha Rao", RollNo: "1", Status: models.StudentStatusActive},
			{ID: "stu-2", UserID: strPtr("user-stu-2"), FullName: "Bala Iyer", RollNo: "2", Status: models.StudentStatusActive},
			{ID: "stu-3", UserID: nil, FullName: "Chitra Nair", RollNo: "3", Status: models.StudentStatusActive},
		},
		SchoolName:       "Green Valley High School",
		AcademicUnitName: "10-A",
	}
}

func newVisibilityFixture(tt *mockTimetableStore, roster *mockRosterStore) (*VisibilityService, *mockTimetableNotifier, *mockTimetableAuditor) {
	notifier := &mockTimetableNotifier{}
	auditor := &mockTimetableAuditor{}
	svc := NewVisibilityService(tt, roster, &mockAccessStore{}, notifier, auditor, zap.NewNop(), nil, VisibilityConfig{})
	return svc, notifier, auditor
}

func TestVisibilityPublishFansOutToFullRecipientSet(t *testing.T) {
	store := &mockTimetableStore{detail: fixtureDetail()}
	roster := &mockRosterStore{
		classTeacher: &models.ClassTeacher{ID: "ct-1", TeacherID: "tch-1", UserID: strPtr("user-ct"), IsPrimary: true, IsActive: true},
		guardianIDs:  []string{"user-guardian"},
	}
	svc, notifier, auditor := newVisibilityFixture(store, roster)

	summary, err := svc.Publish(context.Background(), "tt-1", "admin-1")
	require.NoError(t, err)

	// Two students with logins, one shared supervisor, the class teacher,
	// and one guardian shared by the students. The student without a login
	// is skipped for notifications but still gets an admit card.
	assert.ElementsMatch(t, []string{"user-stu-1", "user-stu-2", "user-sup", "user-ct", "user-guardian"}, notifier.userIDs)
	assert.Equal(t, models.TimetableEventScheduled, notifier.event)
	assert.Equal(t, "Half Yearly Examination", notifier.details.ExamName)

	assert.True(t, summary.Success)
	assert.Equal(t, 5, summary.NotifiedUsers)
	assert.Equal(t, 3, summary.Students)
	assert.Equal(t, 1, summary.Teachers)
	assert.Equal(t, 3, summary.AdmitCards)
	assert.Len(t, store.publishedCards, 3)
	assert.Equal(t, 1, auditor.published)
}

func TestVisibilityPublishDeduplicatesRecipients(t *testing.T) {
	detail := fixtureDetail()
	// The supervisor is also the primary class teacher and doubles as a
	// guardian; each id must be notified exactly once.
	store := &mockTimetableStore{detail: detail}
	roster := &mockRosterStore{
		classTeacher: &models.ClassTeacher{ID: "ct-1", TeacherID: "tch-1", UserID: strPtr("user-sup"), IsPrimary: true, IsActive: true},
		guardianIDs:  []string{"user-sup", "user-stu-1"},
	}
	svc, notifier, _ := newVisibilityFixture(store, roster)

	summary, err := svc.Publish(context.Background(), "tt-1", "admin-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-stu-1", "user-stu-2", "user-sup"}, notifier.userIDs)
	assert.Equal(t, 3, summary.NotifiedUsers)
}

func TestVisibilityPublishAlreadyPublished(t *testing.T) {
	detail := fixtureDetail()
	detail.Timetable.Status = models.TimetableStatusPublished
	store := &mockTimetableStore{detail: detail}
	svc, notifier, _ := newVisibilityFixture(store, &mockRosterStore{})

	_, err := svc.Publish(context.Background(), "tt-1", "admin-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyPublished))
	assert.Zero(t, store.publishCalls)
	assert.Zero(t, notifier.callCount)
}

func TestVisibilityPublishConcurrentFlipLosesRace(t *testing.T) {
	// A concurrent publish wins between the read and the conditional
	// update; the guarded UPDATE reports no rows and the second caller
	// gets the conflict error instead of double-notifying.
	store := &mockTimetableStore{detail: fixtureDetail(), publishErr: sql.ErrNoRows}
	svc, notifier, _ := newVisibilityFixture(store, &mockRosterStore{})

	_, err := svc.Publish(context.Background(), "tt-1", "admin-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyPublished))
	assert.Zero(t, notifier.callCount)
}

func TestVisibilityPublishTimetableNotFound(t *testing.T) {
	store := &mockTimetableStore{detailErr: sql.ErrNoRows}
	svc, _, _ := newVisibilityFixture(store, &mockRosterStore{})

	_, err := svc.Publish(context.Background(), "missing", "admin-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestVisibilityPublishKeepsStatusWhenNotifyFails(t *testing.T) {
	store := &mockTimetableStore{detail: fixtureDetail()}
	roster := &mockRosterStore{guardianIDs: []string{"user-guardian"}}
	svc, notifier, auditor := newVisibilityFixture(store, roster)
	notifier.err = errors.New("smtp down")

	_, err := svc.Publish(context.Background(), "tt-1", "admin-1")
	require.Error(t, err)
	// The transaction committed before fan-out; no rollback is attempted.
	assert.Equal(t, 1, store.publishCalls)
	assert.Len(t, store.publishedCards, 3)
	assert.Zero(t, auditor.published)
}

func TestVisibilityHallTicketsDeterministic(t *testing.T) {
	store := &mockTimetableStore{detail: fixtureDetail()}
	svc, _, _ := newVisibilityFixture(store, &mockRosterStore{})

	first := svc.buildAdmitCards(fixtureDetail())
	second := svc.buildAdmitCards(fixtureDetail())
	require.Len(t, first, 3)

	seen := make(map[string]struct{})
	for i := range first {
		assert.Equal(t, first[i].HallTicketNo, second[i].HallTicketNo)
		assert.Regexp(t, `^[A-Z0-9]{4}-[A-Z0-9]{3}-2026-[0-9A-F]{6}$`, first[i].HallTicketNo)
		seen[first[i].HallTicketNo] = struct{}{}
	}
	assert.Len(t, seen, 3, "hall tickets must be unique per student")

	assert.Equal(t, "Green Valley High School", first[0].ExamCenter)
	assert.Equal(t, "09:00", first[0].ReportingTime, "reporting time comes from the first slot")
}

func TestVisibilityHallTicketsDefaultReportingTime(t *testing.T) {
	detail := fixtureDetail()
	detail.Slots = nil
	svc, _, _ := newVisibilityFixture(&mockTimetableStore{detail: detail}, &mockRosterStore{})

	cards := svc.buildAdmitCards(detail)
	require.NotEmpty(t, cards)
	assert.Equal(t, "08:00", cards[0].ReportingTime)
}

func TestVisibilityUpdatePersistsChangesAndNotifies(t *testing.T) {
	store := &mockTimetableStore{detail: fixtureDetail()}
	roster := &mockRosterStore{guardianIDs: []string{"user-guardian"}}
	svc, notifier, auditor := newVisibilityFixture(store, roster)

	newName := "Half Yearly Examination (Revised)"
	summary, err := svc.UpdateAndNotify(context.Background(), "tt-1", "admin-1", models.TimetableChanges{ExamName: &newName})
	require.NoError(t, err)

	require.NotNil(t, store.appliedChanges)
	assert.Equal(t, &newName, store.appliedChanges.ExamName)
	assert.Equal(t, models.TimetableEventUpdated, notifier.event)
	assert.Equal(t, newName, notifier.details.ExamName, "notification reflects the revised name")
	assert.True(t, summary.Success)

	assert.Equal(t, 1, auditor.updated)
	oldSnapshot, ok := auditor.oldValue.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Half Yearly Examination", oldSnapshot["exam_name"])
	newSnapshot, ok := auditor.newValue.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, newName, newSnapshot["exam_name"])
}

func TestVisibilityCancelNotifiesAndAudits(t *testing.T) {
	store := &mockTimetableStore{detail: fixtureDetail()}
	roster := &mockRosterStore{guardianIDs: []string{"user-guardian"}}
	svc, notifier, auditor := newVisibilityFixture(store, roster)

	summary, err := svc.CancelAndNotify(context.Background(), "tt-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.cancelCalls)
	assert.Equal(t, models.TimetableEventCancelled, notifier.event)
	assert.Equal(t, 1, auditor.cancelled)
	assert.True(t, summary.Success)
}

func TestVisibilityCancelAlreadyCancelled(t *testing.T) {
	detail := fixtureDetail()
	detail.Timetable.Status = models.TimetableStatusCancelled
	store := &mockTimetableStore{detail: detail}
	svc, notifier, _ := newVisibilityFixture(store, &mockRosterStore{})

	_, err := svc.CancelAndNotify(context.Background(), "tt-1", "admin-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyCancelled))
	assert.Zero(t, store.cancelCalls)
	assert.Zero(t, notifier.callCount)
}

func TestVisibilityHasAccess(t *testing.T) {
	detail := fixtureDetail()

	tests := []struct {
		name    string
		profile *models.AccessProfile
		roster  *mockRosterStore
		want    bool
	}{
		{
			name:    "super admin always passes",
			profile: &models.AccessProfile{UserID: "u", Role: models.RoleSuperAdmin},
			roster:  &mockRosterStore{},
			want:    true,
		},
		{
			name:    "school admin of same school",
			profile: &models.AccessProfile{UserID: "u", Role: models.RoleSchoolAdmin, SchoolID: "sch-1"},
			roster:  &mockRosterStore{},
			want:    true,
		},
		{
			name:    "school admin of another school",
			profile: &models.AccessProfile{UserID: "u", Role: models.RoleSchoolAdmin, SchoolID: "sch-2"},
			roster:  &mockRosterStore{},
			want:    false,
		},
		{
			name:    "student of the unit",
			profile: &models.AccessProfile{UserID: "u", Role: models.RoleStudent, StudentUnitID: strPtr("unit-10a")},
			roster:  &mockRosterStore{},
			want:    true,
		},
		{
			name:    "student of another unit",
			profile: &models.AccessProfile{UserID: "u", Role: models.RoleStudent, StudentUnitID: strPtr("unit-10b")},
			roster:  &mockRosterStore{},
			want:    false,
		},
		{
			name:    "supervising teacher",
			profile: &models.AccessProfile{UserID: "u", Role: models.RoleTeacher, TeacherID: strPtr("tch-1")},
			roster:  &mockRosterStore{supervises: true},
			want:    true,
		},
		{
			name:    "non-supervising teacher",
			profile: &models.AccessProfile{UserID: "u", Role: models.RoleTeacher, TeacherID: strPtr("tch-1")},
			roster:  &mockRosterStore{supervises: false},
			want:    false,
		},
		{
			name:    "guardian with ward in unit",
			profile: &models.AccessProfile{UserID: "u", Role: models.RoleGuardian, GuardianID: strPtr("gdn-1")},
			roster:  &mockRosterStore{hasWard: true},
			want:    true,
		},
		{
			name:    "guardian without ward",
			profile: &models.AccessProfile{UserID: "u", Role: models.RoleGuardian, GuardianID: strPtr("gdn-1")},
			roster:  &mockRosterStore{hasWard: false},
			want:    false,
		},
		{
			name:    "supervisor check error fails closed",
			profile: &models.AccessProfile{UserID: "u", Role: models.RoleTeacher, TeacherID: strPtr("tch-1")},
			roster:  &mockRosterStore{supervisesErr: errors.New("db down")},
			want:    false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockTimetableStore{detail: detail}
			access := &mockAccessStore{profile: tc.profile}
			svc := NewVisibilityService(store, tc.roster, access, &mockTimetableNotifier{}, &mockTimetableAuditor{}, zap.NewNop(), nil, VisibilityConfig{})
			assert.Equal(t, tc.want, svc.HasAccess(context.Background(), tc.profile.UserID, "tt-1"))
		})
	}
}

func TestVisibilityHasAccessProfileLookupFailsClosed(t *testing.T) {
	store := &mockTimetableStore{detail: fixtureDetail()}
	access := &mockAccessStore{err: errors.New("db down")}
	svc := NewVisibilityService(store, &mockRosterStore{}, access, &mockTimetableNotifier{}, &mockTimetableAuditor{}, zap.NewNop(), nil, VisibilityConfig{})
	assert.False(t, svc.HasAccess(context.Background(), "u", "tt-1"))
}
