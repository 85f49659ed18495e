package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/pipeline"
)

var (
	runIDs     string
	runRequest string
	runOut     string
	runRunID   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze customers and render the report",
	Long: "Runs every stage for the given customer ids. Without --ids the ids are " +
		"extracted from --request, falling back to the configured defaults.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		req := pipeline.RunRequest{RunID: runRunID, Request: runRequest}
		if runIDs != "" {
			req.TargetIDs = model.ParseCustomerIDs(runIDs)
		}

		res, err := env.Pipeline.Run(ctx, req)
		return finishRun(res, err, runOut, cmd.OutOrStdout())
	},
}

// finishRun logs the outcome and writes the report to path, or to stdout when
// path is empty.
func finishRun(res *pipeline.Result, runErr error, path string, stdout io.Writer) error {
	if res == nil {
		return eris.Wrap(runErr, "pipeline run")
	}

	zap.L().Info("run finished",
		zap.String("run_id", res.RunID),
		zap.String("status", string(res.Status)),
		zap.Strings("target_ids", model.IDStrings(res.State.TargetIDs)),
		zap.Strings("failed_stages", res.Failed),
	)
	if runErr != nil {
		return eris.Wrapf(runErr, "run %s stopped; resume with: wealth-cli resume --run-id %s", res.RunID, res.RunID)
	}

	report := res.Report()
	if path == "" {
		_, err := io.WriteString(stdout, report)
		return err
	}
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return eris.Wrapf(err, "write report %s", path)
	}
	fmt.Fprintf(os.Stderr, "Report for run %s written to %s\n", res.RunID, path)
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runIDs, "ids", "", "comma separated customer ids, e.g. 789012,345678")
	runCmd.Flags().StringVar(&runRequest, "request", "", "free text request to extract customer ids from")
	runCmd.Flags().StringVar(&runOut, "out", "", "write the HTML report to this file instead of stdout")
	runCmd.Flags().StringVar(&runRunID, "run-id", "", "use this run id instead of a generated one")
	rootCmd.AddCommand(runCmd)
}
