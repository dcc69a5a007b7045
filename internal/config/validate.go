package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the configuration required by the given run mode is
// present. Modes: process, batch, serve, export, sync-lookups.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireLLM := func() {
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	}
	requireStore := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "process", "batch":
		requireLLM()
		requireStore()
	case "serve":
		requireLLM()
		requireStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "export", "records":
		requireStore()
	case "sync-lookups":
		if c.Lookup.FTPHost == "" {
			problems = append(problems, "lookup.ftp_host is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.MaxConcurrentMessages < 1 || c.Batch.MaxConcurrentMessages > 50 {
		problems = append(problems, "batch.max_concurrent_messages must be between 1 and 50")
	}
	if c.Router.MinConfidence < 0 || c.Router.MinConfidence > 1 {
		problems = append(problems, "router.min_confidence must be within [0,1]")
	}
	if c.Pipeline.VerifyMinConfidence < 0 || c.Pipeline.VerifyMinConfidence > 1 {
		problems = append(problems, "pipeline.verify_min_confidence must be within [0,1]")
	}
	if c.Pipeline.ExtractRetries < 1 {
		problems = append(problems, "pipeline.extract_retries must be >= 1")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}
