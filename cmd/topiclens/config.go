package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/topiclens/topiclens/internal"
	"gopkg.in/yaml.v3"
)

func NewConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration and providers",
		Long:  `Inspect the configuration and manage the LLM providers used for topic labeling.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(
		newConfigShowCmd(a),
		newProviderListCmd(a),
		newProviderAddCmd(a),
		newProviderRemoveCmd(a),
		newProviderDefaultCmd(a),
		newProviderTestCmd(a),
	)

	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			redactSecrets(cfg)

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func redactSecrets(cfg *internal.Config) {
	if cfg.Embeddings.APIKey != "" {
		cfg.Embeddings.APIKey = "<redacted>"
	}
	for name, pc := range cfg.Providers {
		if pc.APIKey != "" {
			pc.APIKey = "<redacted>"
			cfg.Providers[name] = pc
		}
	}
}

func newProviderListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			if len(cfg.Providers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No providers configured.")
				return nil
			}

			names := make([]string, 0, len(cfg.Providers))
			for name := range cfg.Providers {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				marker := ""
				if name == cfg.DefaultProvider {
					marker = " (default)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", name, marker)
			}
			return nil
		},
	}
}

func newProviderAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			apiKey, _ := cmd.Flags().GetString("api-key")
			baseURL, _ := cmd.Flags().GetString("base-url")
			model, _ := cmd.Flags().GetString("model")
			path, _ := cmd.Flags().GetString("config")

			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			cfg.Providers[name] = internal.ProviderConfig{
				APIKey:  apiKey,
				BaseURL: baseURL,
				Model:   model,
			}
			if cfg.DefaultProvider == "" {
				cfg.DefaultProvider = name
			}

			if err := internal.SaveConfig(path, cfg); err != nil {
				return fmt.Errorf("add provider: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added provider %s\n", name)
			return nil
		},
	}

	cmd.Flags().String("api-key", "", "API key")
	cmd.Flags().String("base-url", "", "Base URL")
	cmd.Flags().String("model", "", "Model name")
	return cmd
}

func newProviderRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			path, _ := cmd.Flags().GetString("config")

			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			if _, ok := cfg.Providers[name]; !ok {
				return fmt.Errorf("provider %s not configured", name)
			}

			delete(cfg.Providers, name)
			if cfg.DefaultProvider == name {
				cfg.DefaultProvider = ""
			}

			if err := internal.SaveConfig(path, cfg); err != nil {
				return fmt.Errorf("remove provider: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed provider %s\n", name)
			return nil
		},
	}
}

func newProviderDefaultCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "default <name>",
		Short: "Set the default provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			path, _ := cmd.Flags().GetString("config")

			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			if _, ok := cfg.Providers[name]; !ok {
				return fmt.Errorf("provider %s not configured", name)
			}

			cfg.DefaultProvider = name

			if err := internal.SaveConfig(path, cfg); err != nil {
				return fmt.Errorf("set default: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Default provider set to %s\n", name)
			return nil
		},
	}
}

func newProviderTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test <name>",
		Short: "Test provider connectivity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			fc, ok := internal.ProviderConfigFrom(cfg, name)
			if !ok {
				return fmt.Errorf("provider %s not configured", name)
			}

			provider, err := internal.NewFantasyProvider(cmd.Context(), fc)
			if err != nil {
				return fmt.Errorf("build provider: %w", err)
			}

			if _, err := provider.Complete(cmd.Context(), "Reply with a single word: ok"); err != nil {
				return fmt.Errorf("test provider: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Provider %s is working\n", name)
			return nil
		},
	}
}
