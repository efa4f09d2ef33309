// Package config loads the reifydb.toml configuration file describing
// store tiers, retention, and CDC pipeline sizing, following the teacher's
// flag+file merge pattern but via github.com/BurntSushi/toml.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level deserialized configuration.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Retention RetentionConfig `toml:"retention"`
	CDC       CDCConfig       `toml:"cdc"`
}

// StoreConfig describes the tiered backend layout (C4 TransactionStore).
type StoreConfig struct {
	HotBackend  string `toml:"hot_backend"`  // "memory"
	WarmBackend string `toml:"warm_backend"` // "memory" | "sqlite"
	ColdBackend string `toml:"cold_backend"` // "sqlite"
	WarmPath    string `toml:"warm_path"`
	ColdPath    string `toml:"cold_path"`
	BatchSize   int    `toml:"batch_size"`
}

// RetentionConfig controls how aggressively old versions are reclaimed.
type RetentionConfig struct {
	Period     Duration `toml:"period"`
	MaxVersions int     `toml:"max_versions"`
	TwoStage   bool     `toml:"two_stage"` // disabled by default, see SPEC_FULL.md
}

// CDCConfig sizes the commit-log dispatcher and shard workers (C7).
type CDCConfig struct {
	Shards        int      `toml:"shards"`
	ChannelDepth  int      `toml:"channel_depth"`
	BatchWindow   Duration `toml:"batch_window"`
	MaxBatch      int      `toml:"max_batch"`
	RetainCommits int      `toml:"retain_commits"`
}

// Duration wraps time.Duration so it can parse TOML string values like
// "500ms" instead of requiring raw nanoseconds.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Store: StoreConfig{
			HotBackend:  "memory",
			WarmBackend: "memory",
			ColdBackend: "sqlite",
			ColdPath:    "reifydb.db",
			BatchSize:   256,
		},
		Retention: RetentionConfig{
			Period:      Duration{24 * time.Hour},
			MaxVersions: 1000,
			TwoStage:    false,
		},
		CDC: CDCConfig{
			Shards:        4,
			ChannelDepth:  1024,
			BatchWindow:   Duration{50 * time.Millisecond},
			MaxBatch:      500,
			RetainCommits: 10000,
		},
	}
}

// Load reads and merges a TOML file on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}
