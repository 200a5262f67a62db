package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatter(t *testing.T) {
	for name, want := range map[string]log.Formatter{
		"":       log.TextFormatter,
		"text":   log.TextFormatter,
		"JSON":   log.JSONFormatter,
		"logfmt": log.LogfmtFormatter,
	} {
		f, err := ParseFormatter(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, f, name)
	}
	_, err := ParseFormatter("xml")
	assert.Error(t, err)
}

func TestSetup(t *testing.T) {
	defer func() {
		require.NoError(t, Setup("info", "text", false))
		SetOutput(os.Stderr)
	}()

	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, Setup("debug", "json", false))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	New("rest").Debug("handled", "path", "/shop/_fsuggest")
	assert.Contains(t, buf.String(), "rest")
	assert.Contains(t, buf.String(), `"path":"/shop/_fsuggest"`)

	assert.Error(t, Setup("loud", "", false))
}
