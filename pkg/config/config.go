package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the scheduler core depends on. The balance
// constants (potency, security deltas, RAM costs) mirror the host
// environment and must be recalibrated if the host changes them.
type Config struct {
	// WeakenPotency is the security reduction one weaken thread achieves
	WeakenPotency float64 `yaml:"weakenPotency"`

	// HackSecurityDelta is the security increase caused per hack thread
	HackSecurityDelta float64 `yaml:"hackSecurityDelta"`

	// GrowSecurityDelta is the security increase caused per grow thread
	GrowSecurityDelta float64 `yaml:"growSecurityDelta"`

	// HackRAM, GrowRAM and WeakenRAM are per-thread RAM costs in GB
	HackRAM   float64 `yaml:"hackRAM"`
	GrowRAM   float64 `yaml:"growRAM"`
	WeakenRAM float64 `yaml:"weakenRAM"`

	// HackFraction is the fraction of a saturated target's money one
	// batch drains. Values above 0.5 destabilize the grow side.
	HackFraction float64 `yaml:"hackFraction"`

	// Spacing is the minimum gap between consecutive completions inside
	// one batch
	Spacing time.Duration `yaml:"spacing"`

	// InterBatchGap separates successive batches' landing times so only
	// one batch is in its critical window at a time
	InterBatchGap time.Duration `yaml:"interBatchGap"`

	// DispatchSlack pads each computed start time to absorb the latency
	// between process launch and operation start
	DispatchSlack time.Duration `yaml:"dispatchSlack"`

	// TTLMargin past the last landing time triggers force-termination of
	// anything still running for the target
	TTLMargin time.Duration `yaml:"ttlMargin"`

	// PollInterval is the drain-check interval while batches are in flight
	PollInterval time.Duration `yaml:"pollInterval"`

	// TickRetryDelay is how long the loop sleeps after a collaborator
	// error before retrying the tick
	TickRetryDelay time.Duration `yaml:"tickRetryDelay"`

	// ScriptID is the remote operation script identity used for dispatch,
	// process listing and termination
	ScriptID string `yaml:"scriptID"`
}

// Default returns the host-calibrated defaults
func Default() *Config {
	return &Config{
		WeakenPotency:     0.05,
		HackSecurityDelta: 0.002,
		GrowSecurityDelta: 0.004,
		HackRAM:           1.70,
		GrowRAM:           1.75,
		WeakenRAM:         1.75,
		HackFraction:      0.25,
		Spacing:           20 * time.Millisecond,
		InterBatchGap:     100 * time.Millisecond,
		DispatchSlack:     5 * time.Millisecond,
		TTLMargin:         5 * time.Second,
		PollInterval:      200 * time.Millisecond,
		TickRetryDelay:    time.Second,
		ScriptID:          "harrow-op",
	}
}

// UnmarshalYAML implements yaml.Unmarshaler so duration fields accept Go
// duration strings ("20ms", "5s") and absent fields keep their defaults
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		WeakenPotency     *float64 `yaml:"weakenPotency"`
		HackSecurityDelta *float64 `yaml:"hackSecurityDelta"`
		GrowSecurityDelta *float64 `yaml:"growSecurityDelta"`
		HackRAM           *float64 `yaml:"hackRAM"`
		GrowRAM           *float64 `yaml:"growRAM"`
		WeakenRAM         *float64 `yaml:"weakenRAM"`
		HackFraction      *float64 `yaml:"hackFraction"`
		Spacing           *string  `yaml:"spacing"`
		InterBatchGap     *string  `yaml:"interBatchGap"`
		DispatchSlack     *string  `yaml:"dispatchSlack"`
		TTLMargin         *string  `yaml:"ttlMargin"`
		PollInterval      *string  `yaml:"pollInterval"`
		TickRetryDelay    *string  `yaml:"tickRetryDelay"`
		ScriptID          *string  `yaml:"scriptID"`
	}

	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}

	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat(&c.WeakenPotency, r.WeakenPotency)
	setFloat(&c.HackSecurityDelta, r.HackSecurityDelta)
	setFloat(&c.GrowSecurityDelta, r.GrowSecurityDelta)
	setFloat(&c.HackRAM, r.HackRAM)
	setFloat(&c.GrowRAM, r.GrowRAM)
	setFloat(&c.WeakenRAM, r.WeakenRAM)
	setFloat(&c.HackFraction, r.HackFraction)

	setDur := func(dst *time.Duration, src *string, name string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = d
		return nil
	}
	if err := setDur(&c.Spacing, r.Spacing, "spacing"); err != nil {
		return err
	}
	if err := setDur(&c.InterBatchGap, r.InterBatchGap, "interBatchGap"); err != nil {
		return err
	}
	if err := setDur(&c.DispatchSlack, r.DispatchSlack, "dispatchSlack"); err != nil {
		return err
	}
	if err := setDur(&c.TTLMargin, r.TTLMargin, "ttlMargin"); err != nil {
		return err
	}
	if err := setDur(&c.PollInterval, r.PollInterval, "pollInterval"); err != nil {
		return err
	}
	if err := setDur(&c.TickRetryDelay, r.TickRetryDelay, "tickRetryDelay"); err != nil {
		return err
	}

	if r.ScriptID != nil {
		c.ScriptID = *r.ScriptID
	}
	return nil
}

// Load reads a YAML config file and overlays it on the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GrowThreadsPerWeaken returns how many grow threads one weaken thread
// offsets (12.5 with host defaults)
func (c *Config) GrowThreadsPerWeaken() float64 {
	return c.WeakenPotency / c.GrowSecurityDelta
}

// HackThreadsPerWeaken returns how many hack threads one weaken thread
// offsets (25 with host defaults)
func (c *Config) HackThreadsPerWeaken() float64 {
	return c.WeakenPotency / c.HackSecurityDelta
}

// RAMForOp returns the per-thread RAM cost of the given operation script
func (c *Config) RAMForOp(op string) float64 {
	switch op {
	case "hack":
		return c.HackRAM
	case "grow":
		return c.GrowRAM
	default:
		return c.WeakenRAM
	}
}

// MaxOpRAM returns the largest per-thread cost across the three
// operations; the loop uses it for conservative capacity estimates
func (c *Config) MaxOpRAM() float64 {
	max := c.HackRAM
	if c.GrowRAM > max {
		max = c.GrowRAM
	}
	if c.WeakenRAM > max {
		max = c.WeakenRAM
	}
	return max
}

// Validate checks the configuration for values the scheduler cannot
// operate with
func (c *Config) Validate() error {
	if c.WeakenPotency <= 0 {
		return fmt.Errorf("weakenPotency must be positive, got %v", c.WeakenPotency)
	}
	if c.HackSecurityDelta <= 0 || c.GrowSecurityDelta <= 0 {
		return fmt.Errorf("security deltas must be positive")
	}
	if c.HackRAM <= 0 || c.GrowRAM <= 0 || c.WeakenRAM <= 0 {
		return fmt.Errorf("per-thread RAM costs must be positive")
	}
	if c.HackFraction <= 0 || c.HackFraction > 0.5 {
		return fmt.Errorf("hackFraction must be in (0, 0.5], got %v", c.HackFraction)
	}
	if c.Spacing <= 0 {
		return fmt.Errorf("spacing must be positive")
	}
	if c.InterBatchGap < 3*c.Spacing {
		return fmt.Errorf("interBatchGap %v too small for spacing %v", c.InterBatchGap, c.Spacing)
	}
	if c.TTLMargin <= 0 {
		return fmt.Errorf("ttlMargin must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("pollInterval must be positive")
	}
	if c.ScriptID == "" {
		return fmt.Errorf("scriptID must not be empty")
	}
	return nil
}
