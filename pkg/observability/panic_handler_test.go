package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	survived := false
	func() {
		defer RecoverPanic(logger, "background sweep")
		panic("boom")
	}()
	survived = true

	assert.True(t, survived)
	entry := parseLine(t, &buf)
	assert.Equal(t, "PANIC recovered", entry["msg"])
	assert.Equal(t, "boom", entry["panic"])
	assert.Equal(t, "background sweep", entry["context"])
	assert.Contains(t, entry["stack"], "panic")
}

func TestRecoverPanic_NoPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	func() {
		defer RecoverPanic(logger, "quiet path")
	}()

	assert.Zero(t, buf.Len())
}

func TestRecoverPanicWithCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	released := false
	func() {
		defer RecoverPanicWithCallback(logger, "worker", func() { released = true })
		panic("boom")
	}()

	assert.True(t, released)
	entry := parseLine(t, &buf)
	assert.Equal(t, "PANIC recovered", entry["msg"])
}
