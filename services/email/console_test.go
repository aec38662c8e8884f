package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func TestConsoleService_format(t *testing.T) {
	conf := core.NewConfig()
	svc := newConsoleService(conf, &recordingLogger{})

	body, err := svc.format(core.EmailMessage{
		To:          []mail.Address{{Name: "Bob", Address: "bob@test.cd"}},
		Subject:     "Password Reset",
		TextContent: "your code",
		HTMLContent: "<p>your code</p>",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "Subject: ["+conf.AppName+"] Password Reset\r\n")
	assert.Contains(t, body, "To: \"Bob\" <bob@test.cd>\r\n")
	assert.Contains(t, body, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, body, "your code\r\n")
	assert.Contains(t, body, "<p>your code</p>\r\n")
	assert.NotContains(t, body, "multipart/mixed")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "--"), "closing boundary missing")
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := core.NewConfig()
	svc := NewConsoleServiceMock(conf, &recordingLogger{})

	svc.SendMessages(
		&core.EmailMessage{Subject: "no recipient", BodyStr: "lol"},
		&core.EmailMessage{To: []mail.Address{{Address: "bob@test.cd"}}, Subject: "empty"},
		&core.EmailMessage{To: []mail.Address{{Address: "bob@test.cd"}}, Subject: "hello", BodyStr: "hi"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].Subject)
	assert.Equal(t, "hi", sent[0].TextContent)
}
