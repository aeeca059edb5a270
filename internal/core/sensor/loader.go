package sensor

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// SuiteConfig describes a whole perception suite: the simulation tick
// rate, bus behavior, stream endpoint, and every sensor.
type SuiteConfig struct {
	TickInterval       time.Duration `json:"tick_interval,omitempty" yaml:"tick_interval,omitempty"`
	SuppressDuplicates bool          `json:"suppress_duplicates,omitempty" yaml:"suppress_duplicates,omitempty"`

	// Listen is the frame stream server address, empty to disable.
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`
	// Transport selects the stream transport: "websocket" (default) or
	// "quic".
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty"`

	Sensors []Config `json:"sensors" yaml:"sensors"`
}

// DefaultSuiteConfig returns a runnable baseline.
func DefaultSuiteConfig() SuiteConfig {
	return SuiteConfig{
		TickInterval: 50 * time.Millisecond,
		Transport:    "websocket",
	}
}

// LoadJSON loads a suite config from a JSON reader.
func LoadJSON(r io.Reader) (*SuiteConfig, error) {
	cfg := DefaultSuiteConfig()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadYAML loads a suite config from a YAML reader.
func LoadYAML(r io.Reader) (*SuiteConfig, error) {
	cfg := DefaultSuiteConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the suite and every sensor config.
func (c *SuiteConfig) Validate() error {
	if c.TickInterval < 0 {
		return fmt.Errorf("suite config: negative tick interval")
	}
	switch c.Transport {
	case "", "websocket", "quic":
	default:
		return fmt.Errorf("suite config: unknown transport %q", c.Transport)
	}
	seen := make(map[string]struct{}, len(c.Sensors))
	for _, sc := range c.Sensors {
		if err := sc.Validate(); err != nil {
			return err
		}
		if _, dup := seen[sc.Name]; dup {
			return fmt.Errorf("suite config: duplicate sensor name %s", sc.Name)
		}
		seen[sc.Name] = struct{}{}
	}
	return nil
}
