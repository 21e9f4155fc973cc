package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"metareview/adapters/excel"
	"metareview/app"
	"metareview/domain/meta"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "metareview",
		Short: "Run meta-analyses on study tables from the command line",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newImportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var (
		measure      string
		model        string
		covariateCol string
		baselineRisk float64
	)

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Pool a study table and print the full report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			studies, err := excel.NewDataReader().ReadStudies(ctx, args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			req := app.AnalysisRequest{
				Studies: studies,
				Measure: meta.Measure(measure),
				Model:   meta.Model(model),
			}
			if covariateCol != "" {
				cov, err := covariateFromStudies(studies, covariateCol)
				if err != nil {
					return err
				}
				req.CovariateName = covariateCol
				req.Covariate = cov
			}
			if cmd.Flags().Changed("baseline-risk") {
				req.BaselineRisk = &baselineRisk
			}

			report, err := app.NewAnalysisService(nil).Run(ctx, req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVarP(&measure, "measure", "m", "OR", "effect measure: OR, RR, MD, SMD or HR")
	cmd.Flags().StringVar(&model, "model", "random", "pooling model: fixed or random")
	cmd.Flags().StringVar(&covariateCol, "covariate", "", "study column to regress on: year or dose")
	cmd.Flags().Float64Var(&baselineRisk, "baseline-risk", 0, "control event rate override for NNT")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Parse a study table and print the studies as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			studies, err := excel.NewDataReader().ReadStudies(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(studies)
		},
	}
}

func covariateFromStudies(studies []meta.Study, column string) ([]float64, error) {
	cov := make([]float64, len(studies))
	for i, st := range studies {
		switch column {
		case "year":
			if st.Year == 0 {
				return nil, fmt.Errorf("study %q has no year", st.Name)
			}
			cov[i] = float64(st.Year)
		case "dose":
			if st.Dose == 0 {
				return nil, fmt.Errorf("study %q has no dose", st.Name)
			}
			cov[i] = st.Dose
		default:
			return nil, fmt.Errorf("unknown covariate column %q", column)
		}
	}
	return cov, nil
}
