package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/furnbridge/orderdesk/internal/branch"
	"github.com/furnbridge/orderdesk/internal/export"
	"github.com/furnbridge/orderdesk/internal/lookup"
	"github.com/furnbridge/orderdesk/internal/mail"
	"github.com/furnbridge/orderdesk/internal/normalize"
	"github.com/furnbridge/orderdesk/internal/pdftext"
	"github.com/furnbridge/orderdesk/internal/pipeline"
	"github.com/furnbridge/orderdesk/internal/resilience"
	"github.com/furnbridge/orderdesk/internal/router"
	"github.com/furnbridge/orderdesk/internal/store"
	"github.com/furnbridge/orderdesk/pkg/llm"
)

// pipelineEnv holds the initialized store, lookup tables and pipeline needed
// by the process/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Exporter *export.Exporter
	Tables   *lookup.Tables
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, the model client and the lookup tables and
// builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	client := llm.WithRetry(
		llm.NewClient(llm.Config{
			APIKey:         cfg.Anthropic.Key,
			ExtractModel:   cfg.Anthropic.ExtractModel,
			ClassifyModel:  cfg.Anthropic.ClassifyModel,
			VerifyModel:    cfg.Anthropic.VerifyModel,
			MaxTokens:      int64(cfg.Anthropic.MaxTokens),
			Temperature:    cfg.Anthropic.Temperature,
			RequestsPerMin: cfg.Anthropic.RequestsPerMin,
		}),
		resilience.FromRetryConfig(cfg.Anthropic.MaxRetries, cfg.Anthropic.RetryBackoffMs, 0, 0, 0.25),
	)

	tables := lookup.New(lookup.Paths{
		Primex:          cfg.Lookup.PrimexPath,
		ILNMap:          cfg.Lookup.ILNMapPath,
		KundenBulgarien: cfg.Lookup.KundenBulgarienCSV,
		Lieferlogik:     cfg.Lookup.LieferlogikPath,
		ZBCatalog:       cfg.Lookup.ZBCatalogPath,
	})

	registry := branch.NewRegistry()
	pdf := pdftext.New(cfg.OCR.PdfToTextPath)
	renderer := pdftext.NewRenderer(cfg.OCR.PdfToPpmPath, cfg.OCR.RenderDPI)
	rt := router.New(registry, client, pdf, cfg.Router)

	var sender pipeline.ReplySender
	if cfg.Mail.Enabled {
		sender = mail.NewReplyMailer(cfg.Mail)
		zap.L().Info("reply mail enabled", zap.String("to", cfg.Mail.To))
	}

	p := pipeline.New(cfg, rt, registry, client, pdf, renderer,
		normalize.New(tables, tables), tables, sender)

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
		Exporter: export.New(cfg.Export.OutputDir),
		Tables:   tables,
	}, nil
}
