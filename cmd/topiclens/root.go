package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "topiclens",
		Short:         "Cluster text corpora and label the topics",
		Long:          `Embed documents, project them to a low-dimensional map, cluster them, and label each cluster with an LLM-generated topic.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if a == nil {
				return
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				a.logger.SetLevel(log.DebugLevel)
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	setHelpWithExternals(rootCmd)

	if a != nil {
		addSubcommands(rootCmd, a)
	}

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Config file path")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
}

func addSubcommands(root *cobra.Command, a *app) {
	root.AddCommand(
		NewFitCmd(a),
		NewInferCmd(a),
		NewTopicsCmd(a),
		NewShowCmd(a),
		NewRunsCmd(a),
		NewDiffCmd(a),
		NewWatchCmd(a),
		NewConfigCmd(a),
	)
}

func setHelpWithExternals(cmd *cobra.Command) {
	defaultHelp := cmd.HelpFunc()

	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		defaultHelp(c, args)
		printExternalCommands(c)
	})
}

func printExternalCommands(cmd *cobra.Command) {
	externals := listExternalCommands()
	if len(externals) == 0 {
		return
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nExternal commands (topiclens-*):")
	for _, name := range externals {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
	}
}
