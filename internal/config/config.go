// Package config loads YAML-based pipeline configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/prism/internal/errdefs"
)

// Default values applied before a config file is read.
const (
	DefaultCheckpointDir  = "./checkpoints"
	DefaultSummaryModel   = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultListenAddr     = ":8080"
	DefaultExplorerDBPath = "./prism-explorer.db"
)

// Checkpoints configures the per-stage checkpoint store.
type Checkpoints struct {
	Dir      string `yaml:"dir"`
	Disabled bool   `yaml:"disabled"`
	Override bool   `yaml:"override"`
}

// Clustering holds the tunables of the clustering stages.
type Clustering struct {
	MaxConcurrent       int64 `yaml:"max_concurrent"`
	ContrastiveExamples int   `yaml:"contrastive_examples"`
	ClustersPerGroup    int   `yaml:"clusters_per_group"`
	MaxClusters         int   `yaml:"max_clusters"`
	Seed                int64 `yaml:"seed"`
}

// Models names the external models used by the pipeline. The API key is
// never read from the file; it comes from OPENAI_API_KEY.
type Models struct {
	Summary   string `yaml:"summary"`
	Embedding string `yaml:"embedding"`
}

// Duration is a time.Duration that decodes from YAML strings like "1h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Cache configures the optional Redis embedding cache. An empty address
// disables caching.
type Cache struct {
	RedisAddr string   `yaml:"redis_addr"`
	TTL       Duration `yaml:"ttl"`
}

// Explorer configures the visualization server.
type Explorer struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`
}

// Config is the top-level YAML structure.
type Config struct {
	Checkpoints Checkpoints `yaml:"checkpoints"`
	Clustering  Clustering  `yaml:"clustering"`
	Models      Models      `yaml:"models"`
	Cache       Cache       `yaml:"cache"`
	Explorer    Explorer    `yaml:"explorer"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Checkpoints: Checkpoints{
			Dir: DefaultCheckpointDir,
		},
		Clustering: Clustering{
			MaxConcurrent:       50,
			ContrastiveExamples: 10,
			ClustersPerGroup:    10,
			MaxClusters:         10,
		},
		Models: Models{
			Summary:   DefaultSummaryModel,
			Embedding: DefaultEmbeddingModel,
		},
		Explorer: Explorer{
			ListenAddr: DefaultListenAddr,
			DBPath:     DefaultExplorerDBPath,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file
// returns the defaults (not an error); a malformed file is a configuration
// error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errdefs.Configuration(fmt.Errorf("read config %s: %w", path, err))
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errdefs.Configuration(fmt.Errorf("parse config %s: %w", path, err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Clustering.MaxConcurrent <= 0 {
		return errdefs.Configuration(fmt.Errorf("clustering.max_concurrent must be positive, got %d", c.Clustering.MaxConcurrent))
	}
	if c.Clustering.ContrastiveExamples < 0 {
		return errdefs.Configuration(fmt.Errorf("clustering.contrastive_examples must not be negative, got %d", c.Clustering.ContrastiveExamples))
	}
	if c.Clustering.ClustersPerGroup <= 0 {
		return errdefs.Configuration(fmt.Errorf("clustering.clusters_per_group must be positive, got %d", c.Clustering.ClustersPerGroup))
	}
	if c.Clustering.MaxClusters <= 0 {
		return errdefs.Configuration(fmt.Errorf("clustering.max_clusters must be positive, got %d", c.Clustering.MaxClusters))
	}
	if c.Checkpoints.Dir == "" && !c.Checkpoints.Disabled {
		return errdefs.Configuration(fmt.Errorf("checkpoints.dir must be set unless checkpoints are disabled"))
	}
	return nil
}

// APIKey returns the OpenAI API key from the environment.
func APIKey() (string, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return "", errdefs.Configuration(fmt.Errorf("OPENAI_API_KEY is not set"))
	}
	return key, nil
}
