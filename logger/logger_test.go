package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSet(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Set(zap.New(core))

	Log().Info("model loaded", zap.String("path", "yolov5s.onnx"))
	S().Infow("request served", "detections", 3)
	Log().Debug("dropped")

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "model loaded", entries[0].Message)
	assert.Equal(t, "yolov5s.onnx", entries[0].ContextMap()["path"])
	assert.Equal(t, int64(3), entries[1].ContextMap()["detections"])

	// Globals follow the installed logger.
	assert.Same(t, Log(), zap.L())
}

func TestInit(t *testing.T) {
	require.NoError(t, Init(Config{Development: true}))
	assert.True(t, Log().Core().Enabled(zap.DebugLevel))

	require.NoError(t, Init(Config{Level: "warn"}))
	assert.False(t, Log().Core().Enabled(zap.InfoLevel))
	assert.True(t, Log().Core().Enabled(zap.WarnLevel))

	assert.Error(t, Init(Config{Level: "loud"}))
	Sync()
}
