// Package config provides configuration loading, validation and hot reload.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/whovisions/costgate/domain/fallback"
	"github.com/whovisions/costgate/domain/pricing"
	"github.com/whovisions/costgate/domain/route"
	"github.com/whovisions/costgate/domain/tier"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Storage   StorageConfig       `yaml:"storage"`
	Spike     SpikeConfig         `yaml:"spike"`
	Estimator EstimatorConfig     `yaml:"estimator"`
	Executor  ExecutorConfig      `yaml:"executor"`
	Tiers     []TierConfig        `yaml:"tiers"`
	Routing   RoutingConfig       `yaml:"routing"`
	Fallbacks map[string][]string `yaml:"fallbacks"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StorageConfig configures the price history store.
// Driver "sqlite" persists to Path; "memory" is ephemeral.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// SpikeConfig holds spike check defaults.
type SpikeConfig struct {
	ThresholdPercent float64 `yaml:"threshold_percent"`
	LookbackDays     int     `yaml:"lookback_days"`
}

// EstimatorConfig configures cost estimation.
// MaxPriceAge of zero means live observations never go stale.
type EstimatorConfig struct {
	MaxPriceAge time.Duration `yaml:"max_price_age"`
}

// ExecutorConfig configures the fallback executor. An empty UpstreamURL
// disables /route/execute; estimation and routing still work.
type ExecutorConfig struct {
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	UpstreamURL    string        `yaml:"upstream_url"`
}

// SKURef names one price time series.
type SKURef struct {
	Service   string `yaml:"service"`
	SKUID     string `yaml:"sku_id"`
	PriceType string `yaml:"price_type"`
}

// TierConfig describes one cognitive tier. The per-million prices are the
// static fallback; the SKU refs map the tier onto live tracked prices.
type TierConfig struct {
	Name              string  `yaml:"name"`
	ModelID           string  `yaml:"model_id"`
	Description       string  `yaml:"description"`
	InputPerMillion   float64 `yaml:"input_per_1m"`
	OutputPerMillion  float64 `yaml:"output_per_1m"`
	InputSKU          SKURef  `yaml:"input_sku"`
	OutputSKU         SKURef  `yaml:"output_sku"`
	MinSubscription   string  `yaml:"min_subscription"`
	RequestsPerMinute int     `yaml:"rpm"`
	TokensPerMinute   int64   `yaml:"tpm"`
}

// BandConfig maps one complexity level to its default tier.
type BandConfig struct {
	Complexity string `yaml:"complexity"`
	Tier       string `yaml:"tier"`
}

// RoutingConfig is the static routing policy. Ladder lists tier names from
// cheapest to most expensive; the first entry is the always-available floor.
type RoutingConfig struct {
	Bands  []BandConfig `yaml:"bands"`
	Ladder []string     `yaml:"ladder"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration: the five-tier Gemini ladder
// with its published pricing.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "data/costgate.db",
		},
		Spike: SpikeConfig{
			ThresholdPercent: 10,
			LookbackDays:     30,
		},
		Executor: ExecutorConfig{
			AttemptTimeout: 30 * time.Second,
		},
		Tiers: []TierConfig{
			{
				Name: "cost_saver", ModelID: "gemini-2.0-flash-lite-001",
				Description:     "Lowest cost. Simple summarization and classification only.",
				InputPerMillion: 0.02, OutputPerMillion: 0.08,
				RequestsPerMinute: 2000, TokensPerMinute: 8_000_000,
			},
			{
				Name: "default", ModelID: "gemini-2.0-flash-001",
				Description:     "High-throughput driver for standard interactions.",
				InputPerMillion: 0.10, OutputPerMillion: 0.40,
				RequestsPerMinute: 1000, TokensPerMinute: 4_000_000,
			},
			{
				Name: "flash_thinking", ModelID: "gemini-2.0-flash-thinking-exp",
				Description:     "Flash with native chain-of-thought.",
				InputPerMillion: 0.10, OutputPerMillion: 0.40,
				RequestsPerMinute: 500, TokensPerMinute: 2_000_000,
			},
			{
				Name: "unk_mode", ModelID: "gemini-2.5-pro-preview-06-05",
				Description:     "Deep reasoning with thinking tokens.",
				InputPerMillion: 2.50, OutputPerMillion: 10.00,
				MinSubscription:   string(tier.SubPro),
				RequestsPerMinute: 150, TokensPerMinute: 1_000_000,
			},
			{
				Name: "ultrathink", ModelID: "gemini-2.5-pro-preview-06-05",
				Description:     "Extended thinking budget. Maximum cognitive depth.",
				InputPerMillion: 2.50, OutputPerMillion: 10.00,
				MinSubscription:   string(tier.SubPro),
				RequestsPerMinute: 60, TokensPerMinute: 500_000,
			},
		},
		Routing: RoutingConfig{
			Bands: []BandConfig{
				{Complexity: string(route.Trivial), Tier: "cost_saver"},
				{Complexity: string(route.Simple), Tier: "default"},
				{Complexity: string(route.Moderate), Tier: "flash_thinking"},
				{Complexity: string(route.Complex), Tier: "unk_mode"},
				{Complexity: string(route.Extreme), Tier: "ultrathink"},
			},
			Ladder: []string{"cost_saver", "default", "flash_thinking", "unk_mode", "ultrathink"},
		},
		Fallbacks: map[string][]string{
			"ultrathink":     {"unk_mode", "flash_thinking"},
			"unk_mode":       {"flash_thinking", "default"},
			"flash_thinking": {"default", "cost_saver"},
			"default":        {"cost_saver"},
		},
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("sqlite storage requires a path")
	}
	if c.Spike.ThresholdPercent < 0 {
		return fmt.Errorf("spike threshold must not be negative")
	}

	names := make(map[string]bool, len(c.Tiers))
	for _, t := range c.Tiers {
		if t.Name == "" {
			return fmt.Errorf("tier with empty name")
		}
		if names[t.Name] {
			return fmt.Errorf("duplicate tier %q", t.Name)
		}
		if t.InputPerMillion < 0 || t.OutputPerMillion < 0 {
			return fmt.Errorf("tier %q has negative pricing", t.Name)
		}
		names[t.Name] = true
	}

	if len(c.Routing.Ladder) == 0 {
		return fmt.Errorf("routing ladder is empty")
	}
	for _, name := range c.Routing.Ladder {
		if !names[name] {
			return fmt.Errorf("ladder references unknown tier %q", name)
		}
	}
	floor, _ := tier.Find(c.TierSpecs(), c.Routing.Ladder[0])
	if floor.MinSubscription != "" {
		return fmt.Errorf("ladder floor %q must not require a subscription", floor.Name)
	}
	for _, b := range c.Routing.Bands {
		if !names[b.Tier] {
			return fmt.Errorf("band %q references unknown tier %q", b.Complexity, b.Tier)
		}
	}
	for from, chain := range c.Fallbacks {
		if !names[from] {
			return fmt.Errorf("fallback chain keyed by unknown tier %q", from)
		}
		for _, to := range chain {
			if !names[to] {
				return fmt.Errorf("fallback chain for %q references unknown tier %q", from, to)
			}
		}
	}
	return nil
}

// TierSpecs converts the configured tiers into domain specs.
func (c *Config) TierSpecs() []tier.Spec {
	specs := make([]tier.Spec, 0, len(c.Tiers))
	for _, t := range c.Tiers {
		specs = append(specs, tier.Spec{
			Name:              t.Name,
			ModelID:           t.ModelID,
			Description:       t.Description,
			InputPerMillion:   decimal.NewFromFloat(t.InputPerMillion),
			OutputPerMillion:  decimal.NewFromFloat(t.OutputPerMillion),
			InputSKU:          t.InputSKU.key(),
			OutputSKU:         t.OutputSKU.key(),
			MinSubscription:   tier.Subscription(t.MinSubscription),
			RequestsPerMinute: t.RequestsPerMinute,
			TokensPerMinute:   t.TokensPerMinute,
		})
	}
	return specs
}

// RoutingTable converts the configured routing policy into a domain table.
func (c *Config) RoutingTable() route.Table {
	bands := make([]route.Band, 0, len(c.Routing.Bands))
	for _, b := range c.Routing.Bands {
		bands = append(bands, route.Band{Complexity: route.Complexity(b.Complexity), Tier: b.Tier})
	}
	return route.Table{Bands: bands, Ladder: append([]string(nil), c.Routing.Ladder...)}
}

// Chains converts the configured fallback chains into the domain form.
func (c *Config) Chains() fallback.Chains {
	chains := make(fallback.Chains, len(c.Fallbacks))
	for from, chain := range c.Fallbacks {
		chains[from] = append([]string(nil), chain...)
	}
	return chains
}

func (r SKURef) key() pricing.SKUKey {
	return pricing.SKUKey{Service: r.Service, SKUID: r.SKUID, PriceType: r.PriceType}
}
