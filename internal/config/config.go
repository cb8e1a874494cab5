// Package config supplies the connection and trading parameters the session
// needs: the two terminal TCP ports, the managed instrument and the trailing
// stop settings. It replaces the host-specific configuration store the
// terminal writes its ports to.
package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/quantde/nolgate/pkg/errors"
)

// Default values applied when the file leaves them unset.
const (
	DefaultHost               = "127.0.0.1"
	DefaultSyncReadTimeout    = 10 * time.Second
	DefaultEvaluationInterval = 15 * time.Second
	DefaultCancelSettleDelay  = 500 * time.Millisecond
	DefaultEventQueueSize     = 256
)

// Duration wraps time.Duration so YAML values like "15s" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid duration %q", value.Value)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all session parameters.
type Config struct {
	// Host the terminal listens on; it only ever binds locally.
	Host string `yaml:"host"`
	// SyncPort is the synchronous request/response port.
	SyncPort int `yaml:"sync_port" validate:"required,gt=0,lte=65535"`
	// AsyncPort is the asynchronous push port.
	AsyncPort int `yaml:"async_port" validate:"required,gt=0,lte=65535"`

	// InstrumentISIN identifies the single instrument under management.
	InstrumentISIN string `yaml:"instrument_isin" validate:"required"`
	// Account is the brokerage account orders are booked against.
	Account string `yaml:"account"`

	// TrailingDistance is the price offset maintained between the last trade
	// price and the active stop.
	TrailingDistance float64 `yaml:"trailing_distance" validate:"gte=0"`
	// Commission is the per-side commission used in realized profit and
	// break-even calculations.
	Commission float64 `yaml:"commission" validate:"gte=0"`

	// EvaluationInterval is the trailing-stop check period.
	EvaluationInterval Duration `yaml:"evaluation_interval"`
	// SyncReadTimeout bounds each synchronous call's response read.
	SyncReadTimeout Duration `yaml:"sync_read_timeout"`
	// CancelSettleDelay is the pause between cancelling the old stop and
	// placing its replacement, giving the terminal time to book the cancel.
	CancelSettleDelay Duration `yaml:"cancel_settle_delay"`
	// EventQueueSize is the outbound event channel capacity.
	EventQueueSize int `yaml:"event_queue_size"`
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeConfigurationUnavailable, err, "failed to read config file %s", path)
	}

	return Parse(data)
}

// Parse decodes and validates YAML config bytes.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}

	if c.EvaluationInterval == 0 {
		c.EvaluationInterval = Duration(DefaultEvaluationInterval)
	}

	if c.SyncReadTimeout == 0 {
		c.SyncReadTimeout = Duration(DefaultSyncReadTimeout)
	}

	if c.CancelSettleDelay == 0 {
		c.CancelSettleDelay = Duration(DefaultCancelSettleDelay)
	}

	if c.EventQueueSize <= 0 {
		c.EventQueueSize = DefaultEventQueueSize
	}
}

// Validate checks the config. A missing port pair is a
// ConfigurationUnavailable error: the session fails fast before attempting a
// connection.
func (c *Config) Validate() error {
	if c.SyncPort == 0 || c.AsyncPort == 0 {
		return errors.New(errors.ErrCodeConfigurationUnavailable, "terminal sync/async ports not configured")
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}

// SyncAddr returns the dial address of the synchronous channel.
func (c *Config) SyncAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.SyncPort))
}

// AsyncAddr returns the dial address of the asynchronous channel.
func (c *Config) AsyncAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.AsyncPort))
}
