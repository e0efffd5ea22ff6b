package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/topiclens/topiclens/internal"
)

func NewShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Render the cluster map to HTML",
		Long:  `Render an interactive scatter plot of the fitted projections, colored by cluster.`,
		RunE:  makeShowRunner(a),
	}

	cmd.Flags().String("from", "topiclens-run", "Directory with fitted artifacts")
	cmd.Flags().StringP("out", "o", "topics.html", "Output HTML file")
	cmd.Flags().String("title", "Topic map", "Chart title")
	return cmd
}

func makeShowRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		from, _ := cmd.Flags().GetString("from")
		out, _ := cmd.Flags().GetString("out")
		title, _ := cmd.Flags().GetString("title")

		pipeline, err := internal.Load(cmd.Context(), from, nil, nil, internal.WithLogger(a.logger))
		if err != nil {
			return fmt.Errorf("load artifacts: %w", err)
		}

		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}

		renderErr := pipeline.RenderHTML(f, title)
		closeErr := f.Close()

		if renderErr != nil {
			return fmt.Errorf("render chart: %w", renderErr)
		}
		if closeErr != nil {
			return fmt.Errorf("close output file: %w", closeErr)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
		return nil
	}
}
