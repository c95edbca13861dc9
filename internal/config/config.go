package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	State       string           `yaml:"state" mapstructure:"state"`
	Services    []string         `yaml:"services" mapstructure:"services"`
	Locations   []LocationConfig `yaml:"locations" mapstructure:"locations"`
	TargetsFile string           `yaml:"targets_file" mapstructure:"targets_file"`
	Scrape      ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Store       StoreConfig      `yaml:"store" mapstructure:"store"`
	Promotion   PromotionConfig  `yaml:"promotion" mapstructure:"promotion"`
	Dedup       DedupConfig      `yaml:"dedup" mapstructure:"dedup"`
	Export      ExportConfig     `yaml:"export" mapstructure:"export"`
	Snapshot    SnapshotConfig   `yaml:"snapshot" mapstructure:"snapshot"`
	Log         LogConfig        `yaml:"log" mapstructure:"log"`
}

// LocationConfig is one configured location with optional secondary targets.
type LocationConfig struct {
	City      string   `yaml:"city" mapstructure:"city"`
	County    string   `yaml:"county" mapstructure:"county"`
	Secondary []string `yaml:"secondary" mapstructure:"secondary"`
}

// ScrapeConfig configures the extractor and the per-target loop.
type ScrapeConfig struct {
	BudgetSecs   int    `yaml:"budget_secs" mapstructure:"budget_secs"`
	DelaySecs    int    `yaml:"delay_secs" mapstructure:"delay_secs"`
	ScrollPasses int    `yaml:"scroll_passes" mapstructure:"scroll_passes"`
	Headless     bool   `yaml:"headless" mapstructure:"headless"`
	BrowserPath  string `yaml:"browser_path" mapstructure:"browser_path"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries   int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// StoreConfig configures the remote store connection. Role gates destructive
// operations: only "service" may run a sync.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Role        string `yaml:"role" mapstructure:"role"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	ChunkSize   int    `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// PromotionConfig configures the promotion policy.
type PromotionConfig struct {
	Enabled        bool           `yaml:"enabled" mapstructure:"enabled"`
	Domain         string         `yaml:"domain" mapstructure:"domain"`
	EligibleScopes []string       `yaml:"eligible_scopes" mapstructure:"eligible_scopes"`
	Fallback       FallbackConfig `yaml:"fallback" mapstructure:"fallback"`
}

// FallbackConfig is the placeholder record injected by promotion.
type FallbackConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Website string `yaml:"website" mapstructure:"website"`
	Phone   string `yaml:"phone" mapstructure:"phone"`
	Address string `yaml:"address" mapstructure:"address"`
}

// DedupConfig configures deduplication.
type DedupConfig struct {
	PrivilegedDomain string `yaml:"privileged_domain" mapstructure:"privileged_domain"`
}

// ExportConfig configures artifact output.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// SnapshotConfig configures the durable snapshot archive. An empty path
// disables archiving.
type SnapshotConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env.local, config file, and environment.
func Load() (*Config, error) {
	// Local dev env if present; in CI the environment is already set.
	_ = godotenv.Load(".env.local")

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("state", "TN")
	v.SetDefault("services", []string{"handyman"})
	v.SetDefault("scrape.budget_secs", 180)
	v.SetDefault("scrape.delay_secs", 5)
	v.SetDefault("scrape.scroll_passes", 5)
	v.SetDefault("scrape.headless", true)
	v.SetDefault("scrape.max_retries", 2)
	v.SetDefault("store.role", "anon")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.chunk_size", 500)
	v.SetDefault("dedup.privileged_domain", "handyman-tn.com")
	v.SetDefault("promotion.enabled", false)
	v.SetDefault("export.dir", "exports")
	v.SetDefault("snapshot.path", "snapshots.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// LoadLocations resolves the location list: the dedicated targets file wins
// when configured, otherwise the inline locations block is used.
func (c *Config) LoadLocations() ([]LocationConfig, error) {
	if c.TargetsFile == "" {
		return c.Locations, nil
	}

	data, err := os.ReadFile(c.TargetsFile)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read targets file %s", c.TargetsFile)
	}

	var doc struct {
		Locations []LocationConfig `yaml:"locations"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "config: parse targets file %s", c.TargetsFile)
	}
	return doc.Locations, nil
}

// ValidateStore checks the minimum needed to talk to the store at all.
func (c *Config) ValidateStore() error {
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	return nil
}

// ValidateDestructive enforces the credential gate for destructive
// operations: a privileged role is mandatory, not a default.
func (c *Config) ValidateDestructive() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.Store.Role != "service" {
		return eris.Errorf("config: destructive operations require store.role=service (got %q)", c.Store.Role)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
