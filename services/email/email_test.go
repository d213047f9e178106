package emailsvc

import (
	"log"
	"net/mail"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	logsvc "github.com/trezcool/academia/services/logger"
)

func newTestLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", 0), core.NewTestConfig())
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	logger := newTestLogger()
	core.ParseEmailTemplates(logger)
	ResetSentMessages()

	svc := NewConsoleServiceMock(conf, logger)
	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Jane", Address: "jane@test.cd"}},
			Subject:      "Enrollment confirmed: React Basics",
			TemplateName: "enrollment_confirmation",
			TemplateData: struct{ Name, CourseName, PaymentID string }{"Jane", "React Basics", "p1"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "lost"},
	)

	require.Len(t, SentMessages, 1)
	msg := SentMessages[0]
	assert.Contains(t, msg.TextContent, "Hello Jane,")
	assert.Contains(t, msg.TextContent, `You are now enrolled in "React Basics".`)
	assert.Contains(t, msg.TextContent, conf.FrontendBaseURL+"/dashboard")
	assert.Contains(t, msg.HTMLContent, "<strong>React Basics</strong>")
}

func TestSendgridService_prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, newTestLogger())

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Jane", Address: "jane@test.cd"}},
		Subject:     "Hi",
		TextContent: "text",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Academia] Hi", m.Personalizations[0].Subject)
	assert.Equal(t, "jane@test.cd", m.Personalizations[0].To[0].Address)
	assert.Len(t, m.Content, 1)
}
