package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	configEnvVar      = "TOPICLENS_CONFIG"
	configDirName     = ".topiclens"
	configFileName    = "config.yaml"
	DefaultEmbedModel = "text-embedding-3-small"
)

type EmbeddingsConfig struct {
	Backend   string `yaml:"backend"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	Dimension int    `yaml:"dimension,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty"`
	CacheSize int    `yaml:"cache_size,omitempty"`
	Normalize bool   `yaml:"normalize"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

type PipelineSettings struct {
	BatchSize   int     `yaml:"batch_size"`
	Projection  string  `yaml:"projection"`
	Components  int     `yaml:"components"`
	Clustering  string  `yaml:"clustering"`
	Clusters    int     `yaml:"clusters,omitempty"`
	Eps         float64 `yaml:"eps,omitempty"`
	MinSamples  int     `yaml:"min_samples,omitempty"`
	Trees       int     `yaml:"trees"`
	TopK        int     `yaml:"top_k"`
	Summaries   bool    `yaml:"summaries"`
	TopicMode   string  `yaml:"topic_mode"`
	Instruction string  `yaml:"instruction,omitempty"`
}

type Config struct {
	Embeddings      EmbeddingsConfig          `yaml:"embeddings"`
	Pipeline        PipelineSettings          `yaml:"pipeline"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Embeddings: EmbeddingsConfig{
			Backend:   "openai",
			Model:     DefaultEmbedModel,
			BatchSize: DefaultEmbedBatchSize,
			CacheSize: DefaultEmbedCacheSize,
			Normalize: true,
		},
		Pipeline: PipelineSettings{
			BatchSize:  1,
			Projection: ProjectionTSNE,
			Components: DefaultComponents,
			Clustering: ClusteringDBSCAN,
			Clusters:   DefaultClusters,
			Eps:        DefaultEps,
			MinSamples: DefaultMinSamples,
			Trees:      DefaultTrees,
			TopK:       DefaultTopK,
			Summaries:  true,
			TopicMode:  string(TopicModeMultiple),
		},
		Providers: make(map[string]ProviderConfig),
	}
}

// DefaultConfigPath resolves the config location: $TOPICLENS_CONFIG if
// set, otherwise ~/.topiclens/config.yaml.
func DefaultConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(configDirName, configFileName)
	}
	return filepath.Join(home, configDirName, configFileName)
}

// LoadConfig reads the config at path, or the default location when
// path is empty. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// EmbedderConfigFrom maps the embeddings section onto an embedder
// setup, falling back to conventional env vars for the API key.
func EmbedderConfigFrom(cfg *Config) EmbedderConfig {
	apiKey := cfg.Embeddings.APIKey
	if apiKey == "" && cfg.Embeddings.Backend != "ollama" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return EmbedderConfig{
		Backend:   cfg.Embeddings.Backend,
		Model:     cfg.Embeddings.Model,
		APIKey:    apiKey,
		BaseURL:   cfg.Embeddings.BaseURL,
		Dimension: cfg.Embeddings.Dimension,
		BatchSize: cfg.Embeddings.BatchSize,
		CacheSize: cfg.Embeddings.CacheSize,
		Normalize: cfg.Embeddings.Normalize,
	}
}

// ProviderConfigFrom resolves the summary provider: the named one, or
// the configured default. Returns false when none is configured.
func ProviderConfigFrom(cfg *Config, name string) (FantasyConfig, bool) {
	if name == "" {
		name = cfg.DefaultProvider
	}
	if name == "" {
		return FantasyConfig{}, false
	}

	pc, ok := cfg.Providers[name]
	if !ok {
		return FantasyConfig{}, false
	}

	apiKey := pc.APIKey
	if apiKey == "" {
		switch name {
		case "openai":
			apiKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openrouter":
			apiKey = os.Getenv("OPENROUTER_API_KEY")
		}
	}

	return FantasyConfig{
		Provider: name,
		APIKey:   apiKey,
		BaseURL:  pc.BaseURL,
		Model:    pc.Model,
	}, true
}

// PipelineOptionsFrom turns the pipeline section into constructor
// options.
func PipelineOptionsFrom(cfg *Config) []PipelineOption {
	summaryCfg := DefaultSummaryConfig()
	if cfg.Pipeline.Instruction != "" {
		summaryCfg.Instruction = cfg.Pipeline.Instruction
	}
	if cfg.Pipeline.TopicMode != "" {
		summaryCfg.Mode = TopicMode(cfg.Pipeline.TopicMode)
	}

	projArgs := DefaultProjectionArgs()
	if cfg.Pipeline.Components > 0 {
		projArgs.Components = cfg.Pipeline.Components
	}

	clusterArgs := DefaultClusteringArgs()
	if cfg.Pipeline.Clusters > 0 {
		clusterArgs.Clusters = cfg.Pipeline.Clusters
	}
	if cfg.Pipeline.Eps > 0 {
		clusterArgs.Eps = cfg.Pipeline.Eps
	}
	if cfg.Pipeline.MinSamples > 0 {
		clusterArgs.MinSamples = cfg.Pipeline.MinSamples
	}

	return []PipelineOption{
		WithBatchSize(cfg.Pipeline.BatchSize),
		WithProjection(cfg.Pipeline.Projection),
		WithProjectionArgs(projArgs),
		WithClustering(cfg.Pipeline.Clustering),
		WithClusteringArgs(clusterArgs),
		WithTrees(cfg.Pipeline.Trees),
		WithSummaries(cfg.Pipeline.Summaries),
		WithSummaryConfig(summaryCfg),
	}
}
