package modem

import (
	"time"

	"github.com/northfield-iot/gsmmodem/geo"
	"github.com/northfield-iot/gsmmodem/pdu"
)

// Codec is the PDU encode/decode contract a Modem session depends on (C7).
// It is an alias for pdu.Codec so callers can construct a Config using
// either package name.
type Codec = pdu.Codec

// Locator resolves a cell identity to a position for LocationInfo.
type Locator = geo.Locator

// Config configures a Modem session. The zero value is invalid: a Dialer
// must always be supplied. Use NewConfigBuilder for a fluent construction
// style.
type Config struct {
	Dialer      Dialer
	InitTimeout time.Duration
	ATTimeout   time.Duration

	// ConcatMode enables automatic reassembly of concatenated SMS (C5).
	// NewConfigBuilder turns it on by default; a Config built as a literal
	// has it off unless set.
	ConcatMode bool

	// Codec decodes/encodes PDUs (C7). Required.
	Codec Codec

	// Locator resolves a cell (LAC/CID) to a position for LocationInfo. May
	// be nil, in which case LocationInfo returns the raw cell identifiers
	// without a resolved position.
	Locator Locator
}

func (c *Config) setDefaults() {
	if c.InitTimeout == 0 {
		c.InitTimeout = 30 * time.Second
	}
	if c.ATTimeout == 0 {
		c.ATTimeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	if c.Codec == nil {
		return &ValidationError{Field: "Codec", Reason: "must not be nil"}
	}
	return nil
}

// ConfigBuilder builds a Config fluently, mirroring the functional-options
// style used elsewhere in this module's ambient configuration.
type ConfigBuilder struct {
	cfg Config
}

// NewConfigBuilder starts a new ConfigBuilder. ConcatMode defaults on.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: Config{ConcatMode: true}}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.cfg.Dialer = d
	return b
}

func (b *ConfigBuilder) WithCodec(c Codec) *ConfigBuilder {
	b.cfg.Codec = c
	return b
}

func (b *ConfigBuilder) WithLocator(l Locator) *ConfigBuilder {
	b.cfg.Locator = l
	return b
}

func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.InitTimeout = d
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.ATTimeout = d
	return b
}

func (b *ConfigBuilder) WithConcatMode(enabled bool) *ConfigBuilder {
	b.cfg.ConcatMode = enabled
	return b
}

// Build validates and returns the assembled Config.
func (b *ConfigBuilder) Build() (Config, error) {
	cfg := b.cfg
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
