package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Embeddings.Backend != "openai" {
		t.Errorf("expected backend 'openai', got %q", cfg.Embeddings.Backend)
	}
	if cfg.Embeddings.Model != DefaultEmbedModel {
		t.Errorf("expected model %q, got %q", DefaultEmbedModel, cfg.Embeddings.Model)
	}
	if !cfg.Embeddings.Normalize {
		t.Error("expected normalization on by default")
	}
	if cfg.Pipeline.Projection != ProjectionTSNE {
		t.Errorf("expected projection %q, got %q", ProjectionTSNE, cfg.Pipeline.Projection)
	}
	if cfg.Pipeline.Clustering != ClusteringDBSCAN {
		t.Errorf("expected clustering %q, got %q", ClusteringDBSCAN, cfg.Pipeline.Clustering)
	}
	if cfg.Pipeline.TopK != DefaultTopK {
		t.Errorf("expected top-k %d, got %d", DefaultTopK, cfg.Pipeline.TopK)
	}
	if !cfg.Pipeline.Summaries {
		t.Error("expected summaries on by default")
	}
	if cfg.Providers == nil {
		t.Error("expected providers map to be initialized")
	}
	if len(cfg.Providers) != 0 {
		t.Errorf("expected 0 providers, got %d", len(cfg.Providers))
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.DefaultProvider = "openai"
	cfg.Providers["openai"] = ProviderConfig{
		APIKey: "sk-test",
		Model:  "gpt-4",
	}
	cfg.Pipeline.Projection = ProjectionPCA

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.DefaultProvider != "openai" {
		t.Errorf("default provider = %q, want %q", loaded.DefaultProvider, "openai")
	}
	if p, ok := loaded.Providers["openai"]; !ok {
		t.Error("expected provider 'openai' to exist")
	} else {
		if p.APIKey != "sk-test" {
			t.Errorf("api key = %q, want %q", p.APIKey, "sk-test")
		}
		if p.Model != "gpt-4" {
			t.Errorf("model = %q, want %q", p.Model, "gpt-4")
		}
	}
	if loaded.Pipeline.Projection != ProjectionPCA {
		t.Errorf("projection = %q, want %q", loaded.Pipeline.Projection, ProjectionPCA)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Should return default config when file doesn't exist
	if cfg.Embeddings.Backend != "openai" {
		t.Errorf("expected default backend, got %q", cfg.Embeddings.Backend)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{{invalid yaml:::"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("embeddings:\n  backend: ollama\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Embeddings.Backend != "ollama" {
		t.Errorf("backend = %q, want %q", cfg.Embeddings.Backend, "ollama")
	}

	// Absent keys keep their defaults.
	if cfg.Embeddings.Model != DefaultEmbedModel {
		t.Errorf("model = %q, want default %q", cfg.Embeddings.Model, DefaultEmbedModel)
	}
	if cfg.Pipeline.Projection != ProjectionTSNE {
		t.Errorf("projection = %q, want default %q", cfg.Pipeline.Projection, ProjectionTSNE)
	}
	if cfg.Providers == nil {
		t.Error("expected providers to be initialized")
	}
}

func TestDefaultConfigPathEnvOverride(t *testing.T) {
	t.Setenv(configEnvVar, "/tmp/custom/config.yaml")

	if got := DefaultConfigPath(); got != "/tmp/custom/config.yaml" {
		t.Errorf("config path = %q, want env override", got)
	}
}

func TestEmbedderConfigFromEnvKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := DefaultConfig()
	if got := EmbedderConfigFrom(cfg).APIKey; got != "sk-env" {
		t.Errorf("api key = %q, want env fallback", got)
	}

	cfg.Embeddings.APIKey = "sk-explicit"
	if got := EmbedderConfigFrom(cfg).APIKey; got != "sk-explicit" {
		t.Errorf("api key = %q, want explicit key to win", got)
	}

	cfg.Embeddings.APIKey = ""
	cfg.Embeddings.Backend = "ollama"
	if got := EmbedderConfigFrom(cfg).APIKey; got != "" {
		t.Errorf("api key = %q, want empty for ollama", got)
	}
}

func TestProviderConfigFrom(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers["openrouter"] = ProviderConfig{Model: "qwen-2.5-72b"}
	cfg.DefaultProvider = "openrouter"

	fc, ok := ProviderConfigFrom(cfg, "")
	if !ok {
		t.Fatal("expected default provider to resolve")
	}
	if fc.Provider != "openrouter" {
		t.Errorf("provider = %q, want %q", fc.Provider, "openrouter")
	}
	if fc.Model != "qwen-2.5-72b" {
		t.Errorf("model = %q, want %q", fc.Model, "qwen-2.5-72b")
	}

	if _, ok := ProviderConfigFrom(cfg, "missing"); ok {
		t.Error("expected unknown provider to fail")
	}

	if _, ok := ProviderConfigFrom(DefaultConfig(), ""); ok {
		t.Error("expected empty config to fail")
	}
}

func TestProviderConfigFromEnvKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg := DefaultConfig()
	cfg.Providers["anthropic"] = ProviderConfig{Model: "claude-3-haiku"}

	fc, ok := ProviderConfigFrom(cfg, "anthropic")
	if !ok {
		t.Fatal("expected provider to resolve")
	}
	if fc.APIKey != "sk-ant" {
		t.Errorf("api key = %q, want env fallback", fc.APIKey)
	}
}

func TestPipelineOptionsFrom(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.BatchSize = 4
	cfg.Pipeline.Projection = ProjectionPCA
	cfg.Pipeline.Components = 3
	cfg.Pipeline.Clustering = ClusteringKMeans
	cfg.Pipeline.Clusters = 5
	cfg.Pipeline.Eps = 0.25
	cfg.Pipeline.MinSamples = 3
	cfg.Pipeline.Trees = 20
	cfg.Pipeline.Summaries = false
	cfg.Pipeline.TopicMode = string(TopicModeSingle)
	cfg.Pipeline.Instruction = "rate the documents"

	p, err := NewPipeline(nil, nil, PipelineOptionsFrom(cfg)...)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if p.batchSize != 4 {
		t.Errorf("batch size = %d, want 4", p.batchSize)
	}
	if p.projArgs.Components != 3 {
		t.Errorf("components = %d, want 3", p.projArgs.Components)
	}
	if p.clusterArgs.Clusters != 5 {
		t.Errorf("clusters = %d, want 5", p.clusterArgs.Clusters)
	}
	if p.clusterArgs.Eps != 0.25 {
		t.Errorf("eps = %v, want 0.25", p.clusterArgs.Eps)
	}
	if p.clusterArgs.MinSamples != 3 {
		t.Errorf("min samples = %d, want 3", p.clusterArgs.MinSamples)
	}
	if p.trees != 20 {
		t.Errorf("trees = %d, want 20", p.trees)
	}
	if p.summaries {
		t.Error("expected summaries disabled")
	}
	if p.summaryCfg.Mode != TopicModeSingle {
		t.Errorf("topic mode = %q, want %q", p.summaryCfg.Mode, TopicModeSingle)
	}
	if p.summaryCfg.Instruction != "rate the documents" {
		t.Errorf("instruction = %q, want override", p.summaryCfg.Instruction)
	}
}
