// Package config loads the store's tunables from an optional YAML file
// inside the data directory, falling back to hardcoded defaults when
// absent — the same functional-options-friendly shape the teacher's
// internal/db/options.go uses, extended with on-disk loading.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the conventional config filename looked for inside the
// data directory.
const FileName = "amethyst.yaml"

// Duration wraps time.Duration so it can be written as "100ms" in YAML
// instead of a raw nanosecond count.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string ("100ms", "1s", ...).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back as a Go duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds every tunable of the store and its two background actors.
type Config struct {
	// FlushThreshold is the memtable key count that triggers a flush.
	FlushThreshold int `yaml:"flush_threshold"`

	// CompactionTrigger is the minimum number of .sst files that triggers
	// a compaction round.
	CompactionTrigger int `yaml:"compaction_trigger"`

	// CompactionBatchSize is the maximum number of files merged per round.
	CompactionBatchSize int `yaml:"compaction_batch_size"`

	// PollInterval is how often idle background actors check for work.
	PollInterval Duration `yaml:"poll_interval"`
}

// Default returns the engine's baseline configuration.
func Default() Config {
	return Config{
		FlushThreshold:      256,
		CompactionTrigger:   4,
		CompactionBatchSize: 4,
		PollInterval:        Duration(100 * time.Millisecond),
	}
}

// Load reads path as YAML and overlays it onto Default(). A missing file
// is not an error — it just yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
