package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/diabetes-risk/dataset"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/plotting"
	"github.com/YuminosukeSato/diabetes-risk/risk"
)

type evaluateCmdConfig struct {
	*rootCmdConfig
	asJSON  bool
	pngPath string
}

func evaluateCmd(rootConfig *rootCmdConfig) *cobra.Command {
	ec := &evaluateCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Train the model and report its in-sample confusion matrix",
		Long:  `Train the model exactly as serve does and print the confusion matrix over the training set with accuracy, precision, recall and F1 for the Diabetes class`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ec.load(cmd)
			if err != nil {
				return err
			}
			artifact, err := train(cfg, logger)
			if err != nil {
				return err
			}
			eval, err := risk.NewEvaluationService(artifact).Evaluate()
			if err != nil {
				return fail(logger, "Evaluation failed", err)
			}

			if ec.pngPath != "" {
				if err := writeHeatmap(ec.pngPath, eval); err != nil {
					return fail(logger, "Writing heatmap failed", err, "path", ec.pngPath)
				}
			}

			out := cmd.OutOrStdout()
			if ec.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(eval)
			}

			cm := eval.Matrix
			fmt.Fprintf(out, "%-12s %12s %12s\n", "actual\\pred", dataset.NoDiabetes, dataset.Diabetes)
			for i, label := range []dataset.Label{dataset.NoDiabetes, dataset.Diabetes} {
				fmt.Fprintf(out, "%-12s %12d %12d\n", label, cm.Counts[i][0], cm.Counts[i][1])
			}
			fmt.Fprintf(out, "\nrecords   %d\naccuracy  %.4f\nprecision %.4f\nrecall    %.4f\nf1        %.4f\n",
				eval.Total, eval.Accuracy, eval.Precision, eval.Recall, eval.F1)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ec.asJSON, "json", false, "print the evaluation as JSON")
	cmd.Flags().StringVar(&ec.pngPath, "png", "", "also write the confusion heatmap to this file")
	return cmd
}

func writeHeatmap(path string, eval risk.Evaluation) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	names := []string{dataset.NoDiabetes.String(), dataset.Diabetes.String()}
	return plotting.ConfusionHeatmap(f, eval.Matrix, names)
}
