package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantde/nolgate/pkg/errors"
)

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
host: 127.0.0.1
sync_port: 24444
async_port: 24445
instrument_isin: PL0GF0031880
account: 00-11-22222
trailing_distance: 15
commission: 10
evaluation_interval: 30s
sync_read_timeout: 5s
cancel_settle_delay: 250ms
event_queue_size: 64
`))
	require.NoError(t, err)

	assert.Equal(t, 24444, cfg.SyncPort)
	assert.Equal(t, 24445, cfg.AsyncPort)
	assert.Equal(t, "PL0GF0031880", cfg.InstrumentISIN)
	assert.Equal(t, 15.0, cfg.TrailingDistance)
	assert.Equal(t, 30*time.Second, cfg.EvaluationInterval.Std())
	assert.Equal(t, 5*time.Second, cfg.SyncReadTimeout.Std())
	assert.Equal(t, 250*time.Millisecond, cfg.CancelSettleDelay.Std())
	assert.Equal(t, "127.0.0.1:24444", cfg.SyncAddr())
	assert.Equal(t, "127.0.0.1:24445", cfg.AsyncAddr())
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
sync_port: 24444
async_port: 24445
instrument_isin: PL0GF0031880
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultEvaluationInterval, cfg.EvaluationInterval.Std())
	assert.Equal(t, DefaultSyncReadTimeout, cfg.SyncReadTimeout.Std())
	assert.Equal(t, DefaultCancelSettleDelay, cfg.CancelSettleDelay.Std())
	assert.Equal(t, DefaultEventQueueSize, cfg.EventQueueSize)
}

func TestParseMissingPortsIsConfigurationUnavailable(t *testing.T) {
	_, err := Parse([]byte(`
instrument_isin: PL0GF0031880
`))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigurationUnavailable))

	_, err = Parse([]byte(`
sync_port: 24444
instrument_isin: PL0GF0031880
`))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigurationUnavailable))
}

func TestParseInvalidDuration(t *testing.T) {
	_, err := Parse([]byte(`
sync_port: 24444
async_port: 24445
instrument_isin: PL0GF0031880
evaluation_interval: quarterly
`))
	require.Error(t, err)
}

func TestParseMissingInstrument(t *testing.T) {
	_, err := Parse([]byte(`
sync_port: 24444
async_port: 24445
`))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
