package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arjun-mehta/school-erp-api/internal/models"
	appErrors "github.com/arjun-mehta/school-erp-api/pkg/errors"
	"github.com/arjun-mehta/school-erp-api/pkg/export"
	"github.com/arjun-mehta/school-erp-api/pkg/response"
)

type visibilityService interface {
	Publish(ctx context.Context, timetableID, publishedBy string) (*models.PublishSummary, error)
	UpdateAndNotify(ctx context.Context, timetableID, updatedBy string, changes models.TimetableChanges) (*models.NotifySummary, error)
	CancelAndNotify(ctx context.Context, timetableID, cancelledBy string) (*models.NotifySummary, error)
	HasAccess(ctx context.Context, userID, timetableID string) bool
}

type admitCardReader interface {
	ListByTimetable(ctx context.Context, timetableID string) ([]models.AdmitCardDetail, error)
}

type timetableLoader interface {
	GetDetail(ctx context.Context, id string) (*models.TimetableDetail, error)
}

// TimetableHandler exposes the timetable lifecycle endpoints.
type TimetableHandler struct {
	visibility visibilityService
	admitCards admitCardReader
	timetables timetableLoader
	pdf        *export.AdmitCardPDF
	csv        *export.CSVExporter
}

// NewTimetableHandler builds a new handler.
func NewTimetableHandler(visibility visibilityService, admitCards admitCardReader, timetables timetableLoader) *TimetableHandler {
	return &TimetableHandler{
		visibility: visibility,
		admitCards: admitCards,
		timetables: timetables,
		pdf:        export.NewAdmitCardPDF(),
		csv:        export.NewCSVExporter(),
	}
}

// Publish flips a timetable to PUBLISHED and fans out notifications.
func (h *TimetableHandler) Publish(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.visibility.Publish(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Update persists timetable changes and notifies the recipient set.
func (h *TimetableHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var changes models.TimetableChanges
	if err := c.ShouldBindJSON(&changes); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable changes payload"))
		return
	}
	summary, err := h.visibility.UpdateAndNotify(c.Request.Context(), c.Param("id"), claims.UserID, changes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Cancel flips a timetable to CANCELLED and notifies the recipient set.
func (h *TimetableHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.visibility.CancelAndNotify(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// AdmitCards returns the admit card batch for a timetable, as JSON by
// default or rendered to PDF/CSV with ?format=.
func (h *TimetableHandler) AdmitCards(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	timetableID := c.Param("id")
	if !h.visibility.HasAccess(c.Request.Context(), claims.UserID, timetableID) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	cards, err := h.admitCards.ListByTimetable(c.Request.Context(), timetableID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admit cards"))
		return
	}

	switch c.Query("format") {
	case "pdf":
		h.renderPDF(c, timetableID, cards)
	case "csv":
		h.renderCSV(c, timetableID, cards)
	default:
		response.JSON(c, http.StatusOK, cards, nil)
	}
}

func (h *TimetableHandler) renderPDF(c *gin.Context, timetableID string, cards []models.AdmitCardDetail) {
	detail, err := h.timetables.GetDetail(c.Request.Context(), timetableID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable"))
		return
	}
	sheet := export.AdmitCardSheet{
		SchoolName: detail.SchoolName,
		ExamName:   detail.Timetable.ExamName,
		DateRange: fmt.Sprintf("%s to %s",
			detail.Timetable.StartDate.Format("02 Jan 2006"),
			detail.Timetable.EndDate.Format("02 Jan 2006")),
	}
	for _, card := range cards {
		sheet.Cards = append(sheet.Cards, export.AdmitCardEntry{
			HallTicketNo:  card.HallTicketNo,
			StudentName:   card.StudentName,
			ClassName:     detail.AcademicUnitName,
			ExamCenter:    card.ExamCenter,
			ReportingTime: card.ReportingTime,
		})
	}
	payload, err := h.pdf.Render(sheet)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render admit cards"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=admit-cards-%s.pdf", timetableID))
	c.Data(http.StatusOK, "application/pdf", payload)
}

func (h *TimetableHandler) renderCSV(c *gin.Context, timetableID string, cards []models.AdmitCardDetail) {
	dataset := export.Dataset{
		Headers: []string{"hall_ticket_no", "roll_no", "student_name", "exam_center", "reporting_time"},
	}
	for _, card := range cards {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"hall_ticket_no": card.HallTicketNo,
			"roll_no":        card.RollNo,
			"student_name":   card.StudentName,
			"exam_center":    card.ExamCenter,
			"reporting_time": card.ReportingTime,
		})
	}
	payload, err := h.csv.Render(dataset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render admit cards"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=admit-cards-%s.csv", timetableID))
	c.Data(http.StatusOK, "text/csv", payload)
}
