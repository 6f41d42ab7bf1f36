// Package notify delivers one-time codes to users.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hongminglow/storefront/internal/models"
)

// ErrDelivery wraps every failure to hand a message to the mail transport.
var ErrDelivery = errors.New("notification delivery failed")

// Sender delivers a plaintext code. Callers must only send codes that are
// already durably stored.
type Sender interface {
	Send(ctx context.Context, to models.User, purpose models.Purpose, code string) error
}

// Site describes the sender identity used in message bodies.
type Site struct {
	Name   string
	Domain string
	Expiry time.Duration
}

// Message is a rendered OTP email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Render builds the subject and bodies for an OTP email.
func Render(site Site, to models.User, purpose models.Purpose, code string) Message {
	name := to.FirstName
	if strings.TrimSpace(name) == "" {
		name = to.Username
	}
	title := PurposeTitle(purpose)
	minutes := int(site.Expiry.Minutes())

	text := fmt.Sprintf(
		"Hi %s,\n\nYour %s code for %s is %s.\nIt is valid for %d minutes.\n\nIf you did not request this, you can ignore this email.\n\n%s\n",
		name, title, site.Name, code, minutes, site.Domain,
	)
	html := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your %s code for <strong>%s</strong> is:</p><h2>%s</h2><p>It is valid for %d minutes.</p>"+
			"<p>If you did not request this, you can ignore this email.</p><p><a href=\"https://%s\">%s</a></p>",
		htmlEscape(name), htmlEscape(title), htmlEscape(site.Name), code, minutes, htmlEscape(site.Domain), htmlEscape(site.Domain),
	)
	return Message{
		Subject: fmt.Sprintf("%s - Your OTP", site.Name),
		Text:    text,
		HTML:    html,
	}
}

// PurposeTitle turns "password_reset" into "Password Reset".
func PurposeTitle(purpose models.Purpose) string {
	p := strings.ReplaceAll(string(purpose), "_", " ")
	return cases.Title(language.English).String(p)
}

var htmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;", "'", "&#39;")

func htmlEscape(s string) string {
	return htmlReplacer.Replace(s)
}

// LogSender only records that a code would have been sent. It is used when no
// mail transport is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender returns a Sender that writes to logger.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the recipient and purpose. The code itself is never logged.
func (s *LogSender) Send(_ context.Context, to models.User, purpose models.Purpose, _ string) error {
	s.logger.Warn("smtp not configured; otp email not sent",
		zap.Int64("user_id", to.ID),
		zap.String("purpose", string(purpose)))
	return nil
}
