// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"
)

const defaultSofficeBin = "soffice"

// commandRunner abstracts command execution for testing.
type commandRunner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

type osRunner struct{}

func (osRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// SofficeEngine converts PDFs with a local headless LibreOffice, importing
// the PDF through the Writer PDF filter and exporting Word 2007 XML.
type SofficeEngine struct {
	bin    string
	runner commandRunner
	log    zerolog.Logger
}

// NewSofficeEngine creates an engine that runs the LibreOffice binary bin
// (default "soffice").
func NewSofficeEngine(bin string, log zerolog.Logger) *SofficeEngine {
	return newSofficeEngine(bin, osRunner{}, log)
}

func newSofficeEngine(bin string, runner commandRunner, log zerolog.Logger) *SofficeEngine {
	if bin == "" {
		bin = defaultSofficeBin
	}
	return &SofficeEngine{bin: bin, runner: runner, log: log}
}

// Name implements Engine.
func (e *SofficeEngine) Name() string { return "soffice" }

// Open checks the binary is on PATH and creates a staging directory that
// also hosts a throwaway LibreOffice profile.
func (e *SofficeEngine) Open(_ context.Context, sourcePath string) (Handle, error) {
	bin, err := e.runner.LookPath(e.bin)
	if err != nil {
		return nil, fmt.Errorf("LibreOffice binary %s not found: %w", e.bin, err)
	}
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", sourcePath, err)
	}
	st, err := newStaging("pdf2word-soffice")
	if err != nil {
		return nil, err
	}
	return &sofficeHandle{engine: e, bin: bin, source: abs, stage: st}, nil
}

type sofficeHandle struct {
	engine *SofficeEngine
	bin    string
	source string
	stage  *staging
}

func (h *sofficeHandle) Convert(ctx context.Context, destinationPath string) error {
	var output bytes.Buffer
	if err := h.engine.runner.Run(ctx, h.bin, h.args(), &output, &output); err != nil {
		return fmt.Errorf("running %s on %s: %w: %s", h.bin, h.source, err, lastLines(output.String(), 5))
	}
	h.engine.log.Debug().Str("output", lastLines(output.String(), 5)).Msg("soffice finished")
	return h.stage.collect(docxName(h.source), destinationPath)
}

func (h *sofficeHandle) args() []string {
	profile := "file://" + filepath.ToSlash(h.stage.path("profile"))
	return []string{
		"-env:UserInstallation=" + profile,
		"--headless",
		"--norestore",
		"--infilter=writer_pdf_import",
		"--convert-to", "docx:MS Word 2007 XML",
		"--outdir", h.stage.dir,
		h.source,
	}
}

func (h *sofficeHandle) Close() error {
	return h.stage.remove()
}
