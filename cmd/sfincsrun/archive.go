package main

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sfincsrun/pkg/archive"
	"sfincsrun/pkg/scenario"
)

var (
	archiveOutput  string
	archivePublish bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive <sfincs.inp>...",
	Short: "Package scenarios and the static files they reference into zip archives",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if archiveOutput != "" && len(args) > 1 && filepath.IsAbs(archiveOutput) {
			return fmt.Errorf("--output must be relative when archiving more than one scenario")
		}
		if archivePublish && app.store == nil {
			return fmt.Errorf("--publish needs an artifact store, set SFINCSRUN_STORE")
		}

		b := archive.NewBuilder(app.log)
		for _, inp := range args {
			out, err := b.Build(cmd.Context(), inp, archiveOutput)
			if err != nil {
				return fmt.Errorf("archive %s: %w", inp, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)

			if archivePublish {
				key := path.Join(filepath.Base(filepath.Dir(out)), filepath.Base(out))
				ref, err := app.store.StoreArchive(cmd.Context(), key, out)
				if err != nil {
					app.log.Warn("Failed to publish archive", zap.String("archive", out), zap.Error(err))
					continue
				}
				app.log.Info("Published archive", zap.String("archive", out), zap.String("ref", ref))
			}
		}
		return nil
	},
}

var baseRootCmd = &cobra.Command{
	Use:   "base-root <sfincs.inp>",
	Short: "Print the directory shared static files are resolved against",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := scenario.ResolveBaseRoot(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), root)
		return nil
	},
}

var unpackCmd = &cobra.Command{
	Use:   "unpack <archive.zip> <dest>",
	Short: "Extract a scenario archive below dest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := archive.Extract(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		app.log.Info("Extracted archive", zap.String("archive", args[0]), zap.Int("files", len(files)))
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

func init() {
	archiveCmd.Flags().StringVarP(&archiveOutput, "output", "o", "", "Archive path, relative to each scenario directory (default sfincs.zip)")
	archiveCmd.Flags().BoolVar(&archivePublish, "publish", false, "Upload each archive to the configured artifact store")
	rootCmd.AddCommand(archiveCmd, baseRootCmd, unpackCmd)
}
