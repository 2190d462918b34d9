package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// NotificationEmail is the payload rendered into the notification template.
type NotificationEmail struct {
	RecipientName string
	Title         string
	Message       string
	AppName       string
	DashboardURL  string
}

var notificationTmpl = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>{{.Title}}</h2>
  <p>Dear {{.RecipientName}},</p>
  <p>{{.Message}}</p>
  <p><a href="{{.DashboardURL}}" style="display:inline-block;padding:10px 20px;background:#2563eb;color:#fff;text-decoration:none;border-radius:4px;">View Dashboard</a></p>
  <p style="color:#888;font-size:12px;">This is an automated message from {{.AppName}}.</p>
</body>
</html>`))

// RenderNotification produces the HTML and plain-text bodies for an
// in-app notification delivered by email.
func RenderNotification(data NotificationEmail) (html string, text string, err error) {
	buf := &bytes.Buffer{}
	if err := notificationTmpl.Execute(buf, data); err != nil {
		return "", "", fmt.Errorf("render notification email: %w", err)
	}
	text = fmt.Sprintf("Dear %s,\n\n%s\n\n%s\n\nView your dashboard: %s",
		data.RecipientName, data.Title, data.Message, data.DashboardURL)
	return buf.String(), text, nil
}
