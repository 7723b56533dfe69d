package security

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestValidateFile(t *testing.T) {
	valid := pngBytes(t)

	t.Run("real png passes", func(t *testing.T) {
		res := ValidateFile("screen.PNG", valid, DetectMIME(valid))
		assert.True(t, res.Valid, res.Error)
		assert.Equal(t, ".png", res.Extension)
		assert.Equal(t, "image/png", res.DetectedMIME)
	})

	t.Run("text passes with charset stripped", func(t *testing.T) {
		data := []byte("stack trace line 1\nline 2\n")
		res := ValidateFile("trace.log", data, "text/plain; charset=utf-8")
		assert.True(t, res.Valid, res.Error)
		assert.Equal(t, "text/plain", res.DetectedMIME)
	})

	t.Run("truncated png is rejected", func(t *testing.T) {
		data := valid[:12]
		res := ValidateFile("screen.png", data, DetectMIME(data))
		assert.False(t, res.Valid)
		assert.Contains(t, res.Error, "image could not be decoded")
	})

	t.Run("spoofed extension is rejected", func(t *testing.T) {
		data := []byte("%PDF-1.7 not really")
		res := ValidateFile("photo.jpg", data, DetectMIME(data))
		assert.False(t, res.Valid)
		assert.Contains(t, res.Error, "does not match extension")
	})

	t.Run("disallowed extension", func(t *testing.T) {
		res := ValidateFile("setup.exe", []byte("MZ\x90\x00"), "application/octet-stream")
		assert.False(t, res.Valid)
		assert.Contains(t, res.Error, "not allowed")
	})

	t.Run("missing extension", func(t *testing.T) {
		res := ValidateFile("README", []byte("hello"), "text/plain")
		assert.False(t, res.Valid)
		assert.Equal(t, "file has no extension", res.Error)
	})
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***@example.com", MaskEmail("john@example.com"))
	assert.Equal(t, "***@example.com", MaskEmail("j@example.com"))
	assert.Equal(t, "***", MaskEmail("no-at-sign"))
	assert.Equal(t, "***", MaskEmail(""))
}

func TestSecurityLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sl := NewSecurityLogger(zap.New(core), "contactus-backend", "test")

	sl.LogMalwareDetected(context.Background(), "evil.pdf", "Eicar-Signature", "clamav", "203.0.113.9", "req-1")
	sl.LogValidationFailed(context.Background(), "john@example.com", "bad cc", "203.0.113.9", "req-2")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, string(EventMalwareDetected), entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "j***@example.com", entries[1].ContextMap()["subject_value"])
}
