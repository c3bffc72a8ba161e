package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "basket.log")

	log, closer, err := New("INFO", path)
	require.NoError(t, err)
	cartLog := Component(log, "cart")
	cartLog.Warn().Str("op", "header").Msg("refresh failed")
	log.Debug().Msg("dropped by level")
	closer()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &fields))
	assert.Equal(t, "warn", fields["level"])
	assert.Equal(t, "cart", fields[ComponentField])
	assert.Equal(t, "header", fields["op"])
	assert.Contains(t, fields, "time")
}

func TestNew_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basket.log")
	for i := 0; i < 2; i++ {
		log, closer, err := New("info", path)
		require.NoError(t, err)
		log.Info().Int("run", i).Msg("start")
		closer()
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, closer, err := New("loud", "")
	require.Error(t, err)
	closer()
}

func TestNewWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, zerolog.ErrorLevel)
	log.Warn().Msg("hidden")
	assert.Zero(t, buf.Len())
	log.Error().Msg("shown")
	assert.NotZero(t, buf.Len())
}
