package flowdecode

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseFlagsDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := ParseFlags(fs, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Listen, cfg.Listen)
	require.Equal(t, 30*time.Minute, cfg.TemplateTTL)
}

func TestParseFlagsOverridesDefault(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := ParseFlags(fs, []string{"-listen", ":9999", "-deferred.max", "10"})
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Listen)
	require.Equal(t, 10, cfg.DeferredMax)
}

func TestParseFlagsYAMLFileIsOverriddenByExplicitFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":7000\"\nmetrics_addr: \":9100\"\n"), 0644))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := ParseFlags(fs, []string{"-config", path, "-listen", ":8000"})
	require.NoError(t, err)
	require.Equal(t, ":8000", cfg.Listen) // explicit flag wins
	require.Equal(t, ":9100", cfg.MetricsAddr) // from the YAML file
}

func TestScanConfigFlagVariants(t *testing.T) {
	require.Equal(t, "a.yaml", scanConfigFlag([]string{"-config", "a.yaml"}))
	require.Equal(t, "b.yaml", scanConfigFlag([]string{"--config=b.yaml"}))
	require.Equal(t, "", scanConfigFlag([]string{"-listen", ":2055"}))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("verbose", "text")
	require.Error(t, err)
}

func TestNewLoggerJSONFormat(t *testing.T) {
	logger, err := NewLogger("debug", "json")
	require.NoError(t, err)
	require.NotNil(t, logger)
}
