// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf2word/internal/convert"
	"github.com/pdiddy/pdf2word/internal/history"
	"github.com/pdiddy/pdf2word/internal/pdfinfo"
	"github.com/pdiddy/pdf2word/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve PDF-to-Word conversion over HTTP",
	Long: `Serve exposes GET /health and POST /convert/pdf-to-word. The conversion
endpoint takes a multipart upload in field "file" and answers with the DOCX as
an attachment. One conversion runs at a time; concurrent requests receive 503
with Retry-After. The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := convert.NewEngine(cfg.Engine, logger)
	if err != nil {
		return err
	}
	orch := convert.New(engine, logger, convert.WithInspector(pdfinfo.Inspector{}))

	var opts []server.Option
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, server.WithRecorder(store))
	}

	log := logger.With().Str("component", "server").Logger()
	return server.New(cfg.Serve, orch, log, opts...).ListenAndServe(cmd.Context())
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", ":5000", "listen address")
	f.String("upload-dir", "uploads", "directory holding in-flight uploads")
	f.Int64("max-upload-bytes", 10<<20, "maximum upload size in bytes")
	f.StringSlice("allowed-origins", []string{"http://localhost:5173"}, "CORS allowed origins")
	f.Int("rate-limit", 0, "requests per minute per client IP (0 disables)")

	bindFlags(f, map[string]string{
		"serve.addr":             "addr",
		"serve.upload_dir":       "upload-dir",
		"serve.max_upload_bytes": "max-upload-bytes",
		"serve.allowed_origins":  "allowed-origins",
		"serve.rate_limit":       "rate-limit",
	})

	rootCmd.AddCommand(serveCmd)
}
