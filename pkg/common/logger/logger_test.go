package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTagsService(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	Init("api-server")

	var buf bytes.Buffer
	SetOutput(&buf)

	Log.WithField("path", "/api/doctor/profile").Debug("request handled")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "api-server", entry["service"])
	assert.Equal(t, "/api/doctor/profile", entry["path"])
	assert.Equal(t, "debug", entry["level"])
}

func TestInitFallsBackToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")
	Init("")

	var buf bytes.Buffer
	SetOutput(&buf)

	Log.Debug("hidden")
	assert.Zero(t, buf.Len())
}

type maskRedactor struct{}

func (maskRedactor) Redact(text string) string {
	return strings.ReplaceAll(text, "asha@x.com", "***")
}

func TestUseRedactorMasksMessageAndFields(t *testing.T) {
	Init("api-server")
	UseRedactor(maskRedactor{})

	var buf bytes.Buffer
	SetOutput(&buf)

	Log.WithError(errors.New("Key (email)=(asha@x.com) already exists")).
		WithField("email", "asha@x.com").
		WithField("attempt", 2).
		Warn("signup failed for asha@x.com")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "signup failed for ***", entry["msg"])
	assert.Equal(t, "Key (email)=(***) already exists", entry["error"])
	assert.Equal(t, "***", entry["email"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.NotContains(t, buf.String(), "asha@x.com")
}
