package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/furnbridge/orderdesk/internal/export"
	"github.com/furnbridge/orderdesk/internal/store"
)

var exportOutputDir string

var exportCmd = &cobra.Command{
	Use:   "export <message-id> [message-id...]",
	Short: "Re-export stored order records as manufacturer XML",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		outputDir := exportOutputDir
		if outputDir == "" {
			outputDir = cfg.Export.OutputDir
		}
		exporter := export.New(outputDir)

		for _, messageID := range args {
			order, err := st.GetRecord(ctx, messageID)
			if err != nil {
				return eris.Wrapf(err, "load record %s", messageID)
			}
			if order == nil {
				return eris.Errorf("record %s not found", messageID)
			}

			paths, err := exporter.Export(order)
			if err != nil {
				return eris.Wrapf(err, "export record %s", messageID)
			}
			zap.L().Info("order exported",
				zap.String("message_id", messageID),
				zap.Strings("files", paths),
			)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutputDir, "output-dir", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}
