package services

import (
	"bytes"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct{}

func (stubService) ID() string { return "stub-service" }

func TestRoundLoggerCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	logger := NewServiceLogger(stubService{})
	logger.Round(7).Info().Msg("closed")

	var event map[string]any
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "stub-service", event["service"])
	assert.Equal(t, float64(7), event["round"])
	assert.Equal(t, "closed", event["message"])
}
