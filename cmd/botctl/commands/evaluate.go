package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecom-support/chatbot/internal/evaluation"
	"github.com/ecom-support/chatbot/internal/faq"
	"github.com/ecom-support/chatbot/internal/intent"
)

var evalDatasetPath string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the built intent model and FAQ index",
	Long: `Evaluate runs the labeled intent dataset through the trained intent model,
gated at the configured threshold, and asks every FAQ question back to the FAQ
index. Build the artifacts first.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalDatasetPath, "dataset", "", "labeled query,intent CSV (defaults to data.intentsPath)")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	datasetPath := evalDatasetPath
	if datasetPath == "" {
		datasetPath = cfg.Data.IntentsPath
	}

	samples, err := intent.LoadDataset(datasetPath)
	if err != nil {
		return err
	}
	model, err := intent.LoadModel(cfg.Artifacts.IntentModelPath)
	if err != nil {
		return fmt.Errorf("load intent model (run train-intents first): %w", err)
	}
	ix, err := faq.LoadIndex(cfg.Artifacts.FAQIndexPath)
	if err != nil {
		return fmt.Errorf("load faq index (run build-faq-index first): %w", err)
	}

	e := evaluation.NewEvaluator(cfg.Pipeline.IntentThreshold)

	ir, err := e.EvaluateIntents(ctx, model, samples)
	if err != nil {
		return err
	}
	fr, err := e.EvaluateFAQ(ctx, faq.NewMatcher(ix, cfg.Pipeline.FAQThreshold), ix.Corpus)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), e.GenerateReport(ir, fr))
	return nil
}
