package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processNoExport bool

var processCmd = &cobra.Command{
	Use:   "process <message.json>",
	Short: "Process a single ingested email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		msg, err := loadMessage(args[0])
		if err != nil {
			return err
		}

		result, err := env.Pipeline.Process(ctx, msg)
		if err != nil {
			return eris.Wrap(err, "process message")
		}

		if err := env.Store.SaveRecord(ctx, result.Order); err != nil {
			return eris.Wrap(err, "save record")
		}

		if !processNoExport {
			paths, err := env.Exporter.Export(result.Order)
			if err != nil {
				return eris.Wrap(err, "export order")
			}
			zap.L().Info("order exported", zap.Strings("files", paths))
		}

		zap.L().Info("message processed",
			zap.String("message_id", msg.MessageID),
			zap.String("branch", result.Order.Branch),
			zap.String("status", string(result.Order.Status)),
			zap.Int("warnings", len(result.Order.Warnings)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Order)
	},
}

func init() {
	processCmd.Flags().BoolVar(&processNoExport, "no-export", false, "skip XML export")
	rootCmd.AddCommand(processCmd)
}
