package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Correlation CorrelationConfig `yaml:"correlation" mapstructure:"correlation"`
	Detection   DetectionConfig   `yaml:"detection" mapstructure:"detection"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CorrelationConfig holds the default thresholds for the correlation pass.
type CorrelationConfig struct {
	MinAppearances int     `yaml:"min_appearances" mapstructure:"min_appearances"`
	MinLift        float64 `yaml:"min_lift" mapstructure:"min_lift"`
	WindowSize     int64   `yaml:"window_size" mapstructure:"window_size"`
	BatchSize      int     `yaml:"batch_size" mapstructure:"batch_size"`
	Parallel       int     `yaml:"parallel" mapstructure:"parallel"`
}

// DetectionConfig holds the default tuning surface for archetype detection.
// Strategy-specific knobs live side by side; each strategy reads only its own.
type DetectionConfig struct {
	Strategy               string  `yaml:"strategy" mapstructure:"strategy"`
	MinLift                float64 `yaml:"min_lift" mapstructure:"min_lift"`
	MinTogether            int     `yaml:"min_together" mapstructure:"min_together"`
	Resolution             float64 `yaml:"resolution" mapstructure:"resolution"`
	Retention              float64 `yaml:"retention" mapstructure:"retention"`
	Iterations             int     `yaml:"iterations" mapstructure:"iterations"`
	Epsilon                float64 `yaml:"epsilon" mapstructure:"epsilon"`
	CliqueSize             int     `yaml:"clique_size" mapstructure:"clique_size"`
	AnchorsPerCulture      int     `yaml:"anchors_per_culture" mapstructure:"anchors_per_culture"`
	AnchorMinLift          float64 `yaml:"anchor_min_lift" mapstructure:"anchor_min_lift"`
	AnchorSimilarityCeil   float64 `yaml:"anchor_similarity_ceiling" mapstructure:"anchor_similarity_ceiling"`
	AnchorDegreeCeiling    int     `yaml:"anchor_degree_ceiling" mapstructure:"anchor_degree_ceiling"`
	DegreeCeiling          int     `yaml:"degree_ceiling" mapstructure:"degree_ceiling"`
	MinCommunitySize       int     `yaml:"min_community_size" mapstructure:"min_community_size"`
	MinMembershipScore     float64 `yaml:"min_membership_score" mapstructure:"min_membership_score"`
	FlexMinConnections     int     `yaml:"flex_min_connections" mapstructure:"flex_min_connections"`
	FlexMinLift            float64 `yaml:"flex_min_lift" mapstructure:"flex_min_lift"`
	Seed                   int64   `yaml:"seed" mapstructure:"seed"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("correlation.min_appearances", 50)
	v.SetDefault("correlation.min_lift", 1.2)
	v.SetDefault("correlation.window_size", 10000)
	v.SetDefault("correlation.batch_size", 10000)
	v.SetDefault("correlation.parallel", 1)
	v.SetDefault("detection.strategy", "louvain")
	v.SetDefault("detection.min_lift", 1.5)
	v.SetDefault("detection.min_together", 50)
	v.SetDefault("detection.resolution", 1.0)
	v.SetDefault("detection.retention", 0.3)
	v.SetDefault("detection.iterations", 20)
	v.SetDefault("detection.epsilon", 0.25)
	v.SetDefault("detection.clique_size", 3)
	v.SetDefault("detection.anchors_per_culture", 5)
	v.SetDefault("detection.anchor_min_lift", 2.0)
	v.SetDefault("detection.anchor_similarity_ceiling", 6.0)
	v.SetDefault("detection.anchor_degree_ceiling", 150)
	v.SetDefault("detection.degree_ceiling", 0)
	v.SetDefault("detection.min_community_size", 7)
	v.SetDefault("detection.min_membership_score", 0.0)
	v.SetDefault("detection.flex_min_connections", 3)
	v.SetDefault("detection.flex_min_lift", 2.0)
	v.SetDefault("detection.seed", 0)

	// Read config file (optional)
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
