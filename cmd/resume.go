package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	resumeRunID string
	resumeOut   string
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue an interrupted run from its last checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "resume")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Resume(ctx, resumeRunID)
		return finishRun(res, err, resumeOut, cmd.OutOrStdout())
	},
}

func init() {
	resumeCmd.Flags().StringVar(&resumeRunID, "run-id", "", "run to resume (required)")
	resumeCmd.Flags().StringVar(&resumeOut, "out", "", "write the HTML report to this file instead of stdout")
	_ = resumeCmd.MarkFlagRequired("run-id")
	rootCmd.AddCommand(resumeCmd)
}
