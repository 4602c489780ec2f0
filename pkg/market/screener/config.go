package screener

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"perpscan/pkg/confkit"
)

// Config carries screener defaults applied when a caller does not override
// them on the command line.
type Config struct {
	QuoteAssets []string `yaml:"quote_assets"`
	Top         int      `yaml:"top"`
	IncludeRaw  bool     `yaml:"include_raw"`

	// Keep bounds how many snapshot files survive per exchange folder.
	Keep int `yaml:"keep"`
}

// LoadConfig reads screener configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open screener config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read screener config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal screener config: %w", err)
	}
	cfg.expandEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandEnv() {
	for i, quote := range c.QuoteAssets {
		c.QuoteAssets[i] = strings.TrimSpace(os.ExpandEnv(quote))
	}
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if c.Top < 0 {
		return fmt.Errorf("screener config: top cannot be negative")
	}
	if c.Keep < 0 {
		return fmt.Errorf("screener config: keep cannot be negative")
	}
	return nil
}

// Params converts configured defaults into snapshot build parameters.
func (c *Config) Params() Params {
	if c == nil {
		return Params{}
	}
	return Params{
		QuoteAssets: c.QuoteAssets,
		Top:         c.Top,
		IncludeRaw:  c.IncludeRaw,
	}
}
