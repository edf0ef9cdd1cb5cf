// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert orchestrates PDF-to-DOCX conversion around an external engine.
// The orchestrator validates the source, prepares the destination directory,
// invokes the engine exactly once through a scoped handle, and verifies that
// the output file materialized.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Engine performs the actual PDF-to-DOCX transformation. Different backends
// (pdf2docx in a container, LibreOffice, a remote service) implement this
// interface.
type Engine interface {
	// Name identifies the engine in logs and history entries.
	Name() string

	// Open acquires a handle bound to the PDF at sourcePath.
	Open(ctx context.Context, sourcePath string) (Handle, error)
}

// Handle is an engine session bound to one source file. Close must be called
// exactly once, whatever the outcome of Convert.
type Handle interface {
	// Convert writes the DOCX rendition of the bound source to destinationPath.
	Convert(ctx context.Context, destinationPath string) error

	// Close releases everything the handle acquired.
	Close() error
}

// Inspector reports facts about a source PDF. Inspection is informational;
// its failures never fail a conversion.
type Inspector interface {
	PageCount(path string) (int, error)
}

// Request names the source PDF and the destination DOCX of one conversion.
// It is immutable once constructed.
type Request struct {
	source      string
	destination string
}

// NewRequest builds a Request from two non-empty paths.
func NewRequest(source, destination string) (Request, error) {
	if strings.TrimSpace(source) == "" {
		return Request{}, errors.New("source path is empty")
	}
	if strings.TrimSpace(destination) == "" {
		return Request{}, errors.New("destination path is empty")
	}
	return Request{
		source:      filepath.Clean(source),
		destination: filepath.Clean(destination),
	}, nil
}

// Source returns the PDF path.
func (r Request) Source() string { return r.source }

// Destination returns the DOCX path.
func (r Request) Destination() string { return r.destination }

// Result is the outcome of one conversion. It is produced once per request
// and never persisted by the orchestrator.
type Result struct {
	Succeeded       bool
	SourcePath      string
	DestinationPath string
	Engine          string
	StartedAt       time.Time
	Duration        time.Duration

	// Err is nil when Succeeded is true, and a *Error otherwise.
	Err error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithInspector attaches a source inspector whose page count is logged once
// the inputs are validated.
func WithInspector(i Inspector) Option {
	return func(o *Orchestrator) { o.inspector = i }
}

// Orchestrator runs the validate, prepare, invoke, verify sequence. It keeps
// no state between calls.
type Orchestrator struct {
	engine    Engine
	log       zerolog.Logger
	inspector Inspector
}

// New creates an orchestrator that converts with engine and logs to log.
func New(engine Engine, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{engine: engine, log: log}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Convert runs one conversion. On failure the returned error is a *Error and
// is also stored in Result.Err. Succeeded is true only when the destination
// exists as a non-empty file after the engine returned.
func (o *Orchestrator) Convert(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	log := o.log.With().
		Str("source", req.Source()).
		Str("destination", req.Destination()).
		Str("engine", o.engine.Name()).
		Logger()

	res := Result{
		SourcePath:      req.Source(),
		DestinationPath: req.Destination(),
		Engine:          o.engine.Name(),
		StartedAt:       start,
	}

	var backup string
	fail := func(e *Error) (Result, error) {
		if backup != "" {
			restoreBackup(log, backup, req.Destination())
		}
		log.Error().
			Str("step", string(e.Step)).
			Str("error_kind", string(e.Kind)).
			Str("path", e.Path).
			AnErr("cause", e.Err).
			Msg("conversion failed")
		res.Err = e
		res.Duration = time.Since(start)
		return res, e
	}

	log.Info().Str("step", "start").Msg("starting conversion")

	if e := validateSource(req.Source()); e != nil {
		return fail(e)
	}
	backup, e := prepareDestination(req.Destination(), req.Source())
	if e != nil {
		return fail(e)
	}
	if backup != "" {
		log.Debug().Str("backup", backup).Msg("existing destination moved aside")
	}

	evt := log.Info().Str("step", "validated")
	if pages, ok := o.pageCount(log, req.Source()); ok {
		evt = evt.Int("pages", pages)
	}
	evt.Msg("inputs validated")

	if e := o.invoke(ctx, log, req); e != nil {
		return fail(e)
	}

	size, e := verifyOutput(req.Destination())
	if e != nil {
		return fail(e)
	}
	if backup != "" {
		if err := os.Remove(backup); err != nil {
			log.Warn().Err(err).Str("backup", backup).Msg("removing previous destination")
		}
	}
	log.Info().Str("step", "verified").Int64("bytes", size).Msg("output verified")

	res.Succeeded = true
	res.Duration = time.Since(start)
	return res, nil
}

// invoke opens the engine handle, converts, and releases the handle on every
// path out of the function.
func (o *Orchestrator) invoke(ctx context.Context, log zerolog.Logger, req Request) *Error {
	h, err := openHandle(ctx, o.engine, req.Source())
	if err != nil {
		return newError(KindEngine, StepOpen, req.Source(), err)
	}
	defer func() {
		if err := closeHandle(h); err != nil {
			log.Warn().Err(err).Msg("releasing engine handle")
		}
	}()

	log.Info().Str("step", "engine_invoked").Msg("engine invoked")
	if err := runHandle(ctx, h, req.Destination()); err != nil {
		return newError(KindEngine, StepConvert, req.Destination(), err)
	}
	log.Info().Str("step", "engine_completed").Msg("engine completed")
	return nil
}

func (o *Orchestrator) pageCount(log zerolog.Logger, path string) (int, bool) {
	if o.inspector == nil {
		return 0, false
	}
	n, err := o.inspector.PageCount(path)
	if err != nil {
		log.Warn().Err(err).Msg("could not inspect source")
		return 0, false
	}
	return n, true
}

// openHandle calls Engine.Open, turning a panic into an error. A handle is
// returned only together with a nil error.
func openHandle(ctx context.Context, e Engine, source string) (h Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("engine panic during open: %v", r)
		}
	}()
	h, err = e.Open(ctx, source)
	if err != nil {
		if h != nil {
			closeHandle(h)
		}
		return nil, err
	}
	if h == nil {
		return nil, errors.New("engine returned no handle")
	}
	return h, nil
}

// runHandle calls Handle.Convert, turning a panic into an error.
func runHandle(ctx context.Context, h Handle, destination string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic during conversion: %v", r)
		}
	}()
	return h.Convert(ctx, destination)
}

// closeHandle calls Handle.Close, turning a panic into an error.
func closeHandle(h Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic during release: %v", r)
		}
	}()
	return h.Close()
}

func validateSource(path string) *Error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newError(KindNotFound, StepValidate, path, err)
		}
		return newError(KindIO, StepValidate, path, err)
	}
	if !info.Mode().IsRegular() {
		return newError(KindNotFound, StepValidate, path, errors.New("not a regular file"))
	}

	f, err := os.Open(path)
	if err != nil {
		return newError(KindIO, StepValidate, path, err)
	}
	f.Close()
	return nil
}

// prepareDestination creates the destination's parent directory. A file
// already at the destination is moved to a backup in the same directory, so
// verification only sees output from this run and a failed run can put the
// earlier file back. It returns the backup path, or "" when there was none.
func prepareDestination(path, source string) (string, *Error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", newError(KindIO, StepPrepare, dir, err)
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", newError(KindIO, StepPrepare, path, err)
	case info.IsDir():
		return "", newError(KindIO, StepPrepare, path, errors.New("destination is a directory"))
	}
	if srcInfo, err := os.Stat(source); err == nil && os.SameFile(srcInfo, info) {
		return "", newError(KindIO, StepPrepare, path, errors.New("destination is the source file"))
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".prev-*")
	if err != nil {
		return "", newError(KindIO, StepPrepare, path, err)
	}
	backup := f.Name()
	f.Close()
	if err := os.Rename(path, backup); err != nil {
		os.Remove(backup)
		return "", newError(KindIO, StepPrepare, path, err)
	}
	return backup, nil
}

// restoreBackup puts the earlier destination file back after a failed run,
// replacing any partial output.
func restoreBackup(log zerolog.Logger, backup, path string) {
	if err := os.Rename(backup, path); err != nil {
		log.Warn().Err(err).Str("backup", backup).Msg("restoring previous destination")
		return
	}
	log.Debug().Msg("previous destination restored")
}

func verifyOutput(path string) (int64, *Error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, newError(KindIncomplete, StepVerify, path, errors.New("engine reported success but wrote no file"))
		}
		return 0, newError(KindIO, StepVerify, path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, newError(KindIncomplete, StepVerify, path, errors.New("output is not a regular file"))
	}
	if info.Size() == 0 {
		return 0, newError(KindIncomplete, StepVerify, path, errors.New("output file is empty"))
	}
	return info.Size(), nil
}
