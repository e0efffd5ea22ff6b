package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/topiclens/topiclens/internal"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	if tryExternalCommand(ctx) {
		return
	}

	app := newApp()
	rootCmd := NewRootCmd(version, app)
	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}

func tryExternalCommand(ctx context.Context) bool {
	if len(os.Args) < 2 {
		return false
	}

	cmd := os.Args[1]
	if cmd == "" || cmd[0] == '-' {
		return false
	}

	if _, err := findExternal(cmd); err != nil {
		return false
	}

	if err := executeExternal(ctx, cmd, os.Args[2:], version); err != nil {
		fmt.Fprintf(os.Stderr, "topiclens %s: %v\n", cmd, err)
		os.Exit(1)
	}

	return true
}

type app struct {
	logger *log.Logger
}

func newApp() *app {
	return &app{logger: log.New(os.Stderr)}
}

func (a *app) loadConfig(cmd *cobra.Command) (*internal.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (a *app) embedder(cfg *internal.Config) (internal.Embedder, error) {
	embedder, err := internal.NewLangchainEmbedder(internal.EmbedderConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	return embedder, nil
}

// provider returns the configured summary provider, or nil when none
// is configured or reachable. Fitting degrades to unlabeled clusters
// in that case.
func (a *app) provider(ctx context.Context, cfg *internal.Config, name string) internal.Provider {
	fc, ok := internal.ProviderConfigFrom(cfg, name)
	if !ok {
		return nil
	}

	provider, err := internal.NewFantasyProvider(ctx, fc)
	if err != nil {
		a.logger.Warn("summary provider unavailable", "provider", fc.Provider, "err", err)
		return nil
	}
	return provider
}

func (a *app) resolveCorpus(ctx context.Context, input string) (string, error) {
	if !internal.IsRemote(input) {
		return input, nil
	}

	cacheDir, err := internal.DefaultCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}

	a.logger.Info("fetching corpus", "url", input)
	fetcher := internal.NewCorpusFetcher(cacheDir, os.Getenv("HF_TOKEN"))
	return fetcher.Fetch(ctx, input, nil)
}
