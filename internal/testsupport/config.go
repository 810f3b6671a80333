package testsupport

import (
	"path/filepath"
	"testing"

	"parlo/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Transcriber.APIKey = "test"
	cfgVal.Dialogue.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTimezone sets the learner timezone on the test config.
func WithTimezone(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Progression.Timezone = name
	}
}

// WithStreakBonusCap overrides the streak bonus day cap on the test config.
func WithStreakBonusCap(days int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Progression.StreakBonusDayCap = days
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
