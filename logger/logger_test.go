package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contract-engine/logger"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("production", "debug", &buf)

	log.Info().Str("contract_id", "c-1").Msg("approved")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "approved", line["message"])
	assert.Equal(t, "c-1", line["contract_id"])
	assert.Equal(t, "contract-engine", line["service"])
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("production", "chatty", &buf)

	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestNew_LeavesGlobalTimeFormat(t *testing.T) {
	// GIVEN: a process that chose its own time format
	previous := zerolog.TimeFieldFormat
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	t.Cleanup(func() { zerolog.TimeFieldFormat = previous })

	// WHEN
	_ = logger.NewWithWriter("production", "info", &bytes.Buffer{})

	// THEN
	assert.Equal(t, zerolog.TimeFormatUnix, zerolog.TimeFieldFormat)
}

func TestNew_TimestampsAreRFC3339(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("production", "info", &buf)

	log.Info().Msg("started")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	raw, ok := line[zerolog.TimestampFieldName].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339, raw)
	assert.NoError(t, err)
}
