package main

import (
	"context"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/furnbridge/orderdesk/internal/model"
	"github.com/furnbridge/orderdesk/internal/store"
)

var (
	batchLimit    int
	batchNoExport bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <message-dir>",
	Short: "Process a directory of ingested emails",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		files, err := listMessageFiles(args[0])
		if err != nil {
			return err
		}

		var exporter orderExporter
		if !batchNoExport {
			exporter = env.Exporter
		}
		return processBatch(ctx, env.Pipeline, env.Store, exporter, files, batchLimit, cfg.Batch.MaxConcurrentMessages)
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of messages to process (0 = all)")
	batchCmd.Flags().BoolVar(&batchNoExport, "no-export", false, "skip XML export")
	rootCmd.AddCommand(batchCmd)
}

// processBatch runs the pipeline over the message files concurrently. A
// failing message is logged and counted, never aborts the batch. Records are
// saved in one bulk upsert on Postgres, row by row otherwise.
func processBatch(ctx context.Context, proc messageProcessor, st store.Store, exporter orderExporter, files []string, limit, concurrency int) error {
	if len(files) == 0 {
		zap.L().Info("no message files found")
		return nil
	}

	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("messages", len(files)),
		zap.Int("concurrency", concurrency),
	)

	var (
		mu     sync.Mutex
		orders []*model.Order

		succeeded, failed atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, file := range files {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", file))

			msg, err := loadMessage(file)
			if err != nil {
				failed.Add(1)
				log.Error("message load failed", zap.Error(err))
				return nil
			}

			result, err := proc.Process(gctx, msg)
			if err != nil {
				failed.Add(1)
				log.Error("message processing failed",
					zap.String("message_id", msg.MessageID),
					zap.Error(err),
				)
				return nil
			}

			if exporter != nil {
				if _, err := exporter.Export(result.Order); err != nil {
					log.Warn("export failed",
						zap.String("message_id", msg.MessageID),
						zap.Error(err),
					)
				}
			}

			mu.Lock()
			orders = append(orders, result.Order)
			mu.Unlock()

			succeeded.Add(1)
			log.Info("message processed",
				zap.String("message_id", msg.MessageID),
				zap.String("branch", result.Order.Branch),
				zap.String("status", string(result.Order.Status)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	if err := saveOrders(ctx, st, orders); err != nil {
		return err
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

func saveOrders(ctx context.Context, st store.Store, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	if ps, ok := st.(*store.PostgresStore); ok {
		n, err := ps.SaveRecords(ctx, orders)
		if err != nil {
			return eris.Wrap(err, "bulk save records")
		}
		zap.L().Info("records saved", zap.Int64("rows", n))
		return nil
	}

	for _, order := range orders {
		if err := st.SaveRecord(ctx, order); err != nil {
			return eris.Wrapf(err, "save record %s", order.MessageID)
		}
	}
	return nil
}
