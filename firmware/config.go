package firmware

import (
	"os"

	"github.com/pelletier/go-toml"
)

// The [carve] table. Zero values fall back to the defaults.
type CarveSection struct {
	Marker   string `toml:"marker"` // hex
	MinRun   int    `toml:"min_run"`
	Lookback int    `toml:"lookback"`
	Output   string `toml:"output"`
	Reserve  int    `toml:"reserve"`
	Hex      bool   `toml:"hex"`
}

// Everything that can be set from a config file
type Config struct {
	Carve      CarveSection `toml:"carve"`
	Signatures []Signature  `toml:"signature"`
}

func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, &ConfigError{Field: "toml", Err: err}
	}
	return &config, nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return ParseConfig(data)
}

// Lay the non-zero fields of over on top of this section
func (s CarveSection) Merge(over CarveSection) CarveSection {
	if over.Marker != "" {
		s.Marker = over.Marker
	}
	if over.MinRun != 0 {
		s.MinRun = over.MinRun
	}
	if over.Lookback != 0 {
		s.Lookback = over.Lookback
	}
	if over.Output != "" {
		s.Output = over.Output
	}
	if over.Reserve != 0 {
		s.Reserve = over.Reserve
	}
	s.Hex = s.Hex || over.Hex
	return s
}

// Produce a validated carve configuration from the [carve] table, with
// anything unset taken from DefaultCarveConfig
func (s CarveSection) CarveConfig() (*CarveConfig, error) {
	config := DefaultCarveConfig()
	if s.Marker != "" {
		marker, err := ParseHexBytes(s.Marker)
		if err != nil {
			return nil, &ConfigError{Field: "marker", Err: err}
		}
		config.Marker = marker
	}
	if s.MinRun != 0 {
		config.MinRun = s.MinRun
	}
	if s.Lookback != 0 {
		config.Lookback = s.Lookback
	}
	if s.Output != "" {
		config.OutputDir = s.Output
	}
	config.Reserve = s.Reserve
	config.HexOutput = s.Hex
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// The configured signatures, or the defaults when the file lists none. Each
// one is compiled so bad patterns fail here rather than mid scan.
func (c *Config) ScanSignatures() ([]Signature, error) {
	if len(c.Signatures) == 0 {
		return DefaultSignatures(), nil
	}
	for i := range c.Signatures {
		if _, err := c.Signatures[i].Compile(); err != nil {
			return nil, err
		}
	}
	return c.Signatures, nil
}
