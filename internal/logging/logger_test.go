package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigwatch.log")

	logger, err := New(Options{Level: "info", File: path})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("watcher started", zap.String("path", "/tmp/db.sig"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "watcher started", entry["msg"])
	assert.Equal(t, "/tmp/db.sig", entry["path"])
	assert.Contains(t, entry, "time")
}

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
		debugOn bool
	}{
		{name: "default is info", opts: Options{}, debugOn: false},
		{name: "explicit debug", opts: Options{Level: "debug"}, debugOn: true},
		{name: "debug flag", opts: Options{Level: "error", Debug: true}, debugOn: true},
		{name: "invalid level", opts: Options{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.debugOn, logger.Core().Enabled(zap.DebugLevel))
		})
	}
}
