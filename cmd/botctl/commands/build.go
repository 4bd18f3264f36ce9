package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	entityExamplesPath string
	buildTimeout       time.Duration
)

var buildFAQCmd = &cobra.Command{
	Use:   "build-faq-index",
	Short: "Build the FAQ similarity index from the FAQ CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), buildTimeout)
		defer cancel()

		ix, err := processor().BuildFAQIndex(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "FAQ index written to %s (%d entries, version %s)\n",
			cfg.Artifacts.FAQIndexPath, len(ix.Corpus), ix.Version)
		return nil
	},
}

var trainIntentsCmd = &cobra.Command{
	Use:   "train-intents",
	Short: "Train the intent classifier from the labeled intents CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), buildTimeout)
		defer cancel()

		m, err := processor().TrainIntentModel(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Intent model written to %s (%d labels, %d features)\n",
			cfg.Artifacts.IntentModelPath, len(m.Labels), m.Vectorizer.Dim())
		return nil
	},
}

var trainEntitiesCmd = &cobra.Command{
	Use:   "train-entities",
	Short: "Train the PRODUCT / ORDER_ID entity model",
	Long:  "Train the entity model from a JSON file of labeled examples, or from the built-in examples when --examples is not set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), buildTimeout)
		defer cancel()

		n, err := processor().TrainEntityModel(ctx, entityExamplesPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Entity model written to %s (%d examples)\n", cfg.Artifacts.EntityModelDir, n)
		return nil
	},
}

var buildAllCmd = &cobra.Command{
	Use:   "build-all",
	Short: "Build every artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), buildTimeout)
		defer cancel()

		if err := processor().BuildAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All artifacts built")
		return nil
	},
}

func init() {
	trainEntitiesCmd.Flags().StringVar(&entityExamplesPath, "examples", "", "JSON file of labeled entity examples")

	for _, c := range []*cobra.Command{buildFAQCmd, trainIntentsCmd, trainEntitiesCmd, buildAllCmd} {
		c.Flags().DurationVar(&buildTimeout, "timeout", 10*time.Minute, "maximum build time")
		rootCmd.AddCommand(c)
	}
}
