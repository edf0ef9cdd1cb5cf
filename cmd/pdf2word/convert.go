// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf2word/internal/convert"
	"github.com/pdiddy/pdf2word/internal/history"
	"github.com/pdiddy/pdf2word/internal/pdfinfo"
	"github.com/pdiddy/pdf2word/pkg/types"
)

// runConvert converts args[0] into args[1]. Every failure ends with a single
// "Conversion failed" log line and exit status 1.
func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Conversion failed")
		return errReported
	}

	req, err := convert.NewRequest(args[0], args[1])
	if err != nil {
		logger.Error().Err(err).Msg("Conversion failed")
		return errReported
	}

	engine, err := convert.NewEngine(cfg.Engine, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Conversion failed")
		return errReported
	}

	orch := convert.New(engine, logger, convert.WithInspector(pdfinfo.Inspector{}))
	res, err := orch.Convert(ctx, req)
	recordHistory(ctx, cfg.History, res)
	if err != nil {
		logger.Error().
			Str("error_kind", string(convert.KindOf(err))).
			Err(err).
			Msg("Conversion failed")
		return errReported
	}

	logger.Info().
		Str("destination", res.DestinationPath).
		Dur("duration", res.Duration).
		Msg("Conversion successful")
	return nil
}

// recordHistory journals res when history.path is set. Journal failures are
// warnings; they never change the conversion outcome.
func recordHistory(ctx context.Context, cfg types.HistoryConfig, res convert.Result) {
	if cfg.Path == "" {
		return
	}
	store, err := history.Open(cfg.Path)
	if err != nil {
		logger.Warn().Err(err).Str("history", cfg.Path).Msg("opening history journal")
		return
	}
	defer store.Close()

	if _, err := store.Record(ctx, res); err != nil {
		logger.Warn().Err(err).Str("history", cfg.Path).Msg("recording conversion")
	}
}
