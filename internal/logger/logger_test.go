package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	SetGlobal(New(&buf, false), false)
	t.Cleanup(func() { SetGlobal(nil, false) })

	Get().Debug("hidden")
	For("migrator").Info("Applying migration", "id", "20240101000000_Init")
	assert.False(t, IsDebug())
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "component=migrator")
	assert.Contains(t, buf.String(), "id=20240101000000_Init")

	buf.Reset()
	SetGlobal(New(&buf, true), true)
	Get().Debug("shown")
	assert.True(t, IsDebug())
	assert.Contains(t, buf.String(), "level=DEBUG msg=shown")
}
