// Package mail delivers verification codes.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
)

type Sender interface {
	SendVerification(ctx context.Context, to, username, code string) error
}

const verificationSubject = "ShadowSpeak verification code"

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Verification Code</title></head>
<body style="font-family: Verdana, sans-serif; color: #222;">
  <h2>Hello {{.Username}},</h2>
  <p>Thank you for registering. Please use the following verification code to complete your registration:</p>
  <p style="font-size: 24px; font-weight: bold; letter-spacing: 4px;">{{.Code}}</p>
  <p>Or open <a href="{{.Link}}">{{.Link}}</a> and enter the code there.</p>
  <p>If you did not request this code, please ignore this email.</p>
</body>
</html>
`))

type verificationData struct {
	Username string
	Code     string
	Link     string
}

// RenderVerification returns the HTML body of the verification email.
func RenderVerification(baseURL, username, code string) (string, error) {
	var body bytes.Buffer
	err := verificationTmpl.Execute(&body, verificationData{
		Username: username,
		Code:     code,
		Link:     strings.TrimRight(baseURL, "/") + "/verify/" + url.PathEscape(username),
	})
	if err != nil {
		return "", fmt.Errorf("render verification email: %w", err)
	}
	return body.String(), nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
}

type SMTPSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTPSender) SendVerification(ctx context.Context, to, username, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := RenderVerification(s.cfg.BaseURL, username, code)
	if err != nil {
		return err
	}

	var msg strings.Builder
	msg.WriteString("From: " + s.cfg.From + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + verificationSubject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	if err := s.sendMail(addr, auth, envelopeAddress(s.cfg.From), []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// envelopeAddress strips a display name: "Name <a@b>" -> "a@b".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return from
}

// LogSender logs the code instead of mailing it. Used when SMTP_HOST is empty.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) SendVerification(_ context.Context, to, username, code string) error {
	s.Log.Info("verification code (mail disabled)", "to", to, "username", username, "code", code)
	return nil
}
