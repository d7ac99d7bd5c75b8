// Package flowdecode wires the decode engine, template registry, and
// output pipeline into a runnable collector.
package flowdecode

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the collector-level settings bound from flags and
// optionally overlaid with a YAML file. Output destination and
// compression are the file transport driver's own concern (its
// -transport.file* flags, registered on the same flag set) rather than
// duplicated here.
type Config struct {
	Listen       string        `yaml:"listen"`
	MetricsAddr  string        `yaml:"metrics_addr"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	TemplateTTL  time.Duration `yaml:"template_ttl"`
	SweepEvery   time.Duration `yaml:"sweep_interval"`
	SnapshotPath string        `yaml:"snapshot_path"`
	FlushEvery   time.Duration `yaml:"snapshot_flush_interval"`
	DeferredMax  int           `yaml:"deferred_max"`
	DeferredAge  time.Duration `yaml:"deferred_max_age"`
	ConfigFile   string        `yaml:"-"`
}

// DefaultConfig matches the environment defaults in SPEC_FULL.md §6.
func DefaultConfig() Config {
	return Config{
		Listen:      ":2055",
		MetricsAddr: ":8080",
		LogLevel:    "info",
		LogFormat:   "text",
		TemplateTTL: 30 * time.Minute,
		SweepEvery:  time.Minute,
		DeferredMax: 500,
		DeferredAge: 10 * time.Minute,
	}
}

// ParseFlags binds a Config to fs, starting from DefaultConfig, then
// parses args. Pass flag.CommandLine so driver-registered flags (the
// file transport's -transport.file*, etc.) parse together with the
// collector's own. A -config flag, if given, is read and applied as a
// base layer before the explicit flags (so a flag on the command line
// still wins over the file).
func ParseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := DefaultConfig()

	fs.StringVar(&cfg.ConfigFile, "config", "", "YAML config file (optional)")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "UDP listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics.addr", cfg.MetricsAddr, "HTTP address for /metrics and /templates")
	fs.StringVar(&cfg.LogLevel, "log.level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log.format", cfg.LogFormat, "Log format: text or json")
	fs.DurationVar(&cfg.TemplateTTL, "template.ttl", cfg.TemplateTTL, "Idle time before an exporter's templates are evicted (0 disables)")
	fs.DurationVar(&cfg.SweepEvery, "template.sweep-interval", cfg.SweepEvery, "Template eviction sweep interval")
	fs.StringVar(&cfg.SnapshotPath, "template.snapshot-path", cfg.SnapshotPath, "Template snapshot file (empty disables persistence)")
	fs.DurationVar(&cfg.FlushEvery, "template.snapshot-flush-interval", 5*time.Minute, "Template snapshot flush interval")
	fs.IntVar(&cfg.DeferredMax, "deferred.max", cfg.DeferredMax, "Max deferred datagrams held per exporter")
	fs.DurationVar(&cfg.DeferredAge, "deferred.max-age", cfg.DeferredAge, "Max age of a deferred datagram before it times out")

	if configFile := scanConfigFlag(args); configFile != "" {
		if err := applyYAMLFile(configFile, &cfg); err != nil {
			return cfg, err
		}
		reseedFlagDefaults(fs, &cfg)
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// scanConfigFlag looks for -config/--config in args without fully
// parsing them, so its value can seed flag defaults before the real
// parse runs (and can therefore still be overridden by a later flag).
func scanConfigFlag(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "-config" || arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "-config=") || strings.HasPrefix(arg, "--config="):
			_, value, _ := strings.Cut(arg, "=")
			return value
		}
	}
	return ""
}

func applyYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// reseedFlagDefaults re-registers each flag's default to the
// YAML-loaded value so a subsequent fs.Parse only overrides fields the
// user actually passed on the command line.
func reseedFlagDefaults(fs *flag.FlagSet, cfg *Config) {
	set := func(name, value string) {
		if f := fs.Lookup(name); f != nil {
			f.DefValue = value
			_ = f.Value.Set(value)
		}
	}
	set("listen", cfg.Listen)
	set("metrics.addr", cfg.MetricsAddr)
	set("log.level", cfg.LogLevel)
	set("log.format", cfg.LogFormat)
	set("template.ttl", cfg.TemplateTTL.String())
	set("template.sweep-interval", cfg.SweepEvery.String())
	set("template.snapshot-path", cfg.SnapshotPath)
	set("template.snapshot-flush-interval", cfg.FlushEvery.String())
	set("deferred.max", fmt.Sprintf("%d", cfg.DeferredMax))
	set("deferred.max-age", cfg.DeferredAge.String())
}
