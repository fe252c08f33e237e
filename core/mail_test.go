package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfs "github.com/trezcool/mahudhurio/fs"
)

func Test_parseTemplates(t *testing.T) {
	cache, err := parseTemplates(appfs.FS, true)
	require.NoError(t, err)

	for _, name := range []string{"password_reset", "attendance_changed", "daily_digest"} {
		entry, ok := cache[name]
		if assert.True(t, ok, "template %s missing", name) {
			assert.NotNil(t, entry.text, "%s.txt", name)
			assert.NotNil(t, entry.html, "%s.gohtml", name)
		}
	}
	_, ok := cache["_base"]
	assert.False(t, ok, "base templates must not be registered as messages")
}

func TestEmailMessage_Render(t *testing.T) {
	cache, err := parseTemplates(appfs.FS, true)
	require.NoError(t, err)
	tmplMu.Lock()
	templates, frontendURL = cache, "http://school.test"
	tmplMu.Unlock()

	msg := &EmailMessage{
		TemplateName: "attendance_changed",
		TemplateData: map[string]interface{}{
			"StudentName": "Amani",
			"StudentID":   "abc",
			"Status":      "ABSENT",
			"Date":        "2024-01-15",
			"Remarks":     "",
		},
	}
	require.NoError(t, msg.Render())
	assert.Contains(t, msg.TextContent, "Amani was marked ABSENT on 2024-01-15.")
	assert.Contains(t, msg.TextContent, "http://school.test/students/abc/attendance")
	assert.NotContains(t, msg.TextContent, "Remarks")
	assert.Contains(t, msg.HTMLContent, "<strong>Amani</strong>")

	plain := &EmailMessage{BodyStr: "hi"}
	require.NoError(t, plain.Render())
	assert.Equal(t, "hi", plain.TextContent)
	assert.Empty(t, plain.HTMLContent)

	unknown := &EmailMessage{TemplateName: "nope"}
	assert.Error(t, unknown.Render())
}

func TestEmailMessage_Attach(t *testing.T) {
	msg := &EmailMessage{}
	require.NoError(t, msg.Attach(strings.NewReader("a,b\n1,2\n"), "report.csv", "text/csv"))

	require.True(t, msg.HasAttachments())
	at := msg.Attachments[0]
	assert.Equal(t, "report.csv", at.Filename)
	assert.Equal(t, "text/csv", at.ContentType)
	assert.Equal(t, "YSxiCjEsMgo=", at.Content.String())
}
