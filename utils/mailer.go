package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"

	"moim/config"
)

type EmailData struct {
	Subject   string
	To        []string
	Template  string
	Data      interface{}
	Year      int
	FromName  string
	FromEmail string
}

// Embedded email templates
var emailTemplates = map[string]string{
	"verification": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .code { font-size: 24px; font-weight: bold; color: #3498db; margin: 20px 0; text-align: center; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header"><h2>Confirm your email</h2></div>
    <p>Welcome to Moim! Use this code to confirm your account:</p>
    <div class="code">{{.Data.Code}}</div>
    <p>The code expires in 24 hours.</p>
    <div class="footer">&copy; {{.Year}} Moim</div>
</body>
</html>`,

	"password-reset": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .code { font-size: 24px; font-weight: bold; color: #3498db; margin: 20px 0; text-align: center; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header"><h2>Password reset</h2></div>
    <p>Use this code to reset your password:</p>
    <div class="code">{{.Data.Code}}</div>
    <p>The code expires in 30 minutes. If you didn't request this, ignore this email.</p>
    <div class="footer">&copy; {{.Year}} Moim</div>
</body>
</html>`,

	"check-in-reminder": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header"><h2>Don't break your streak</h2></div>
    <p>Hi {{.Data.Name}}, you haven't checked in to <strong>{{.Data.StudyName}}</strong> today.</p>
    <p>Check in before midnight to keep your attendance record going.</p>
    <div class="footer">&copy; {{.Year}} Moim</div>
</body>
</html>`,
}

// Mailer sends templated HTML email over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg config.Config) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.FromEmail,
	}
}

// Configured reports whether SMTP settings are present. Sending is skipped
// (not failed) when they are not, so local development works without a relay.
func (m *Mailer) Configured() bool {
	return m.dialer.Host != ""
}

func (m *Mailer) Send(data EmailData) error {
	if !m.Configured() {
		return fmt.Errorf("mailer not configured")
	}

	tmplSrc, ok := emailTemplates[data.Template]
	if !ok {
		return fmt.Errorf("unknown email template %q", data.Template)
	}

	tmpl, err := template.New(data.Template).Parse(tmplSrc)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	data.Year = time.Now().Year()
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", data.To...)
	msg.SetHeader("Subject", data.Subject)
	msg.SetBody("text/html", body.String())

	return m.dialer.DialAndSend(msg)
}

// SendVerificationEmail sends the account-confirmation code.
func (m *Mailer) SendVerificationEmail(to, code string) error {
	return m.Send(EmailData{
		Subject:  "Your Moim verification code",
		To:       []string{to},
		Template: "verification",
		Data:     map[string]string{"Code": code},
	})
}

// SendPasswordResetEmail sends the password-reset code.
func (m *Mailer) SendPasswordResetEmail(to, code string) error {
	return m.Send(EmailData{
		Subject:  "Reset your Moim password",
		To:       []string{to},
		Template: "password-reset",
		Data:     map[string]string{"Code": code},
	})
}

// SendCheckInReminder nudges a member who has not checked in today.
func (m *Mailer) SendCheckInReminder(to, name, studyName string) error {
	return m.Send(EmailData{
		Subject:  "Reminder: check in to " + studyName,
		To:       []string{to},
		Template: "check-in-reminder",
		Data:     map[string]string{"Name": name, "StudyName": studyName},
	})
}
