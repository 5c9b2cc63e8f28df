package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sfincsrun/pkg/executor"
	"sfincsrun/pkg/models"
)

var (
	runBackend    string
	runExecutable string
	runImageTag   string
	runQuiet      bool
)

var runCmd = &cobra.Command{
	Use:   "run <sfincs.inp>",
	Short: "Run a SFINCS model and classify the outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := models.ParseBackend(runBackend)
		if err != nil {
			return err
		}
		req := models.RunRequest{
			Backend: backend,
			Verbose: !runQuiet,
		}
		switch backend {
		case models.BackendExe:
			req.Executable = runExecutable
			if req.Executable == "" {
				req.Executable = app.cfg.Executable
			}
		default:
			req.ImageTag = runImageTag
			if req.ImageTag == "" {
				req.ImageTag = app.cfg.ImageTag
			}
		}

		deps := executor.Deps{Logger: app.log, Console: cmd.OutOrStdout()}
		if app.store != nil {
			deps.LogStore = app.store
		}
		orch := executor.NewOrchestrator(app.cfg, deps)

		res, err := orch.Run(cmd.Context(), args[0], req)
		if res.Outcome != "" {
			fields := []zap.Field{
				zap.String("run_id", res.RunID),
				zap.String("outcome", string(res.Outcome)),
				zap.Int("exit_code", res.ExitCode),
				zap.String("log", res.LogPath),
			}
			if res.LogURI != "" {
				fields = append(fields, zap.String("log_uri", res.LogURI))
			}
			app.log.Info("Run result", fields...)
		}
		if err != nil {
			return fmt.Errorf("run %s: %w", args[0], err)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runBackend, "backend", "b", string(models.BackendDocker), "Run method: exe, docker or apptainer")
	runCmd.Flags().StringVar(&runExecutable, "exe", "", "Path to the native simulator executable (exe backend)")
	runCmd.Flags().StringVar(&runImageTag, "tag", "", "Simulator image tag (container backends)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not echo simulator output")
	rootCmd.AddCommand(runCmd)
}
