package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hongminglow/storefront/internal/models"
)

func TestPurposeTitle(t *testing.T) {
	assert.Equal(t, "Verify Email", PurposeTitle(models.PurposeVerifyEmail))
	assert.Equal(t, "Password Reset", PurposeTitle(models.PurposePasswordReset))
}

func TestRender(t *testing.T) {
	site := Site{Name: "Corner Shop", Domain: "corner.example", Expiry: 10 * time.Minute}
	user := models.User{Username: "ana", Email: "ana@example.com"}

	msg := Render(site, user, models.PurposePasswordReset, "004211")

	assert.Equal(t, "Corner Shop - Your OTP", msg.Subject)
	assert.Contains(t, msg.Text, "Hi ana")
	assert.Contains(t, msg.Text, "004211")
	assert.Contains(t, msg.Text, "valid for 10 minutes")
	assert.Contains(t, msg.HTML, "<h2>004211</h2>")
	assert.Contains(t, msg.HTML, "Password Reset")
}

func TestRenderEscapesNames(t *testing.T) {
	site := Site{Name: "Shop", Domain: "shop.example", Expiry: time.Minute}
	msg := Render(site, models.User{FirstName: "<b>x</b>"}, models.PurposeVerifyEmail, "123456")
	assert.NotContains(t, msg.HTML, "<b>x</b>")
	assert.Contains(t, msg.HTML, "&lt;b&gt;x&lt;/b&gt;")
}

func TestBuildMIME(t *testing.T) {
	body, err := buildMIME("noreply@shop.example", "ana@example.com", Message{Subject: "S", Text: "line1\nline2", HTML: "<p>h</p>"})
	require.NoError(t, err)
	out := string(body)
	assert.True(t, strings.HasPrefix(out, "From: noreply@shop.example\r\n"))
	assert.Contains(t, out, "To: ana@example.com\r\n")
	assert.Contains(t, out, "multipart/alternative")
	assert.Contains(t, out, "line1\r\nline2")
	assert.Contains(t, out, "<p>h</p>")

	_, err = buildMIME("a@b", "x@y\r\nBcc: evil@z", Message{})
	assert.Error(t, err)
}

func TestLogSenderNeverLogsCode(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	require.NoError(t, s.Send(context.Background(), models.User{ID: 3}, models.PurposeVerifyEmail, "987654"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	for _, f := range entry.Context {
		assert.NotEqual(t, "987654", f.String)
	}
	assert.NotContains(t, entry.Message, "987654")
}
