package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/synapsestack/csaw-engine/internal/alerts"
	"github.com/synapsestack/csaw-engine/internal/config"
	"github.com/synapsestack/csaw-engine/internal/engine"
	"github.com/synapsestack/csaw-engine/internal/models"
	"github.com/synapsestack/csaw-engine/internal/utils"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		inputPath string
		preset    string
		nowFlag   string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis pass over a message dump and print the result",
		Long:  "Reads an analysis request as JSON from a file or stdin, runs a single heuristic-only pass, and prints the result to stdout.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

			req, err := readRequest(inputPath)
			if err != nil {
				return err
			}
			if nowFlag != "" {
				now, err := utils.ParseRFC3339(nowFlag)
				if err != nil {
					return fmt.Errorf("invalid --now: %w", err)
				}
				req.Now = now
			}

			presets, err := alerts.NewPresetStore(cfg.Presets.Path, logger)
			if err != nil {
				return err
			}

			pipeline, err := engine.NewPipeline(logger, cfg.Windows.Models(), nil, presets, nil, 0)
			if err != nil {
				return err
			}

			result, err := pipeline.Analyze(cmd.Context(), req, preset)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "request JSON file, or - for stdin")
	cmd.Flags().StringVar(&preset, "preset", "", "filter preset context name")
	cmd.Flags().StringVar(&nowFlag, "now", "", "RFC 3339 reference time for the pass (defaults to the request's now field)")
	return cmd
}

func readRequest(path string) (models.AnalysisRequest, error) {
	var reader io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return models.AnalysisRequest{}, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		reader = f
	}

	var req models.AnalysisRequest
	if err := json.NewDecoder(reader).Decode(&req); err != nil {
		return models.AnalysisRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}
