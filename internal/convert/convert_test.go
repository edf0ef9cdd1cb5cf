// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine implements Engine for testing. Its handles write canned output,
// fail, panic, or write nothing depending on configuration, and count how
// often they are opened and released.
type fakeEngine struct {
	output     string
	openErr    error
	convErr    error
	panicMsg   string
	closePanic string
	noWrite    bool

	// handleWithErr makes Open return a live handle together with openErr.
	handleWithErr bool

	opened   int
	released int
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Open(_ context.Context, sourcePath string) (Handle, error) {
	f.opened++
	if f.openErr != nil {
		if f.handleWithErr {
			return &fakeHandle{engine: f, source: sourcePath}, f.openErr
		}
		return nil, f.openErr
	}
	return &fakeHandle{engine: f, source: sourcePath}, nil
}

type fakeHandle struct {
	engine *fakeEngine
	source string
}

func (h *fakeHandle) Convert(_ context.Context, destinationPath string) error {
	if h.engine.panicMsg != "" {
		panic(h.engine.panicMsg)
	}
	if h.engine.convErr != nil {
		return h.engine.convErr
	}
	if h.engine.noWrite {
		return nil
	}
	return os.WriteFile(destinationPath, []byte(h.engine.output), 0o644)
}

func (h *fakeHandle) Close() error {
	h.engine.released++
	if h.engine.closePanic != "" {
		panic(h.engine.closePanic)
	}
	return nil
}

// fakeInspector returns a fixed page count or error.
type fakeInspector struct {
	pages int
	err   error
}

func (f fakeInspector) PageCount(string) (int, error) { return f.pages, f.err }

// setupPDF creates a temporary PDF file and returns its path and the temp dir.
func setupPDF(t *testing.T) (pdfPath, tmpDir string) {
	t.Helper()
	tmpDir = t.TempDir()
	pdfPath = filepath.Join(tmpDir, "report.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.7 fake"), 0o644))
	return pdfPath, tmpDir
}

func newTestOrchestrator(e Engine, logBuf *bytes.Buffer, opts ...Option) *Orchestrator {
	return New(e, zerolog.New(logBuf), opts...)
}

func mustRequest(t *testing.T, src, dst string) Request {
	t.Helper()
	req, err := NewRequest(src, dst)
	require.NoError(t, err)
	return req
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name         string
		engine       *fakeEngine
		missingSrc   bool
		wantKind     Kind
		wantSentinel error
		wantOpened   int
		wantReleased int
	}{
		{
			name:         "successful conversion",
			engine:       &fakeEngine{output: "PK docx bytes"},
			wantOpened:   1,
			wantReleased: 1,
		},
		{
			name:         "missing source never opens the engine",
			engine:       &fakeEngine{output: "unused"},
			missingSrc:   true,
			wantKind:     KindNotFound,
			wantSentinel: ErrNotFound,
			wantOpened:   0,
			wantReleased: 0,
		},
		{
			name:         "open failure",
			engine:       &fakeEngine{openErr: errors.New("image not found")},
			wantKind:     KindEngine,
			wantSentinel: ErrEngine,
			wantOpened:   1,
			wantReleased: 0,
		},
		{
			name:         "handle returned with an open error is released",
			engine:       &fakeEngine{openErr: errors.New("partial setup"), handleWithErr: true},
			wantKind:     KindEngine,
			wantSentinel: ErrEngine,
			wantOpened:   1,
			wantReleased: 1,
		},
		{
			name:         "release panic after engine error keeps the classification",
			engine:       &fakeEngine{convErr: errors.New("boom"), closePanic: "release crashed"},
			wantKind:     KindEngine,
			wantSentinel: ErrEngine,
			wantOpened:   1,
			wantReleased: 1,
		},
		{
			name:         "release panic after success is only a warning",
			engine:       &fakeEngine{output: "PK docx bytes", closePanic: "release crashed"},
			wantOpened:   1,
			wantReleased: 1,
		},
		{
			name:         "engine error still releases the handle",
			engine:       &fakeEngine{convErr: errors.New("container exited with code 1")},
			wantKind:     KindEngine,
			wantSentinel: ErrEngine,
			wantOpened:   1,
			wantReleased: 1,
		},
		{
			name:         "engine panic still releases the handle",
			engine:       &fakeEngine{panicMsg: "segfault in layout analysis"},
			wantKind:     KindEngine,
			wantSentinel: ErrEngine,
			wantOpened:   1,
			wantReleased: 1,
		},
		{
			name:         "engine reports success but writes nothing",
			engine:       &fakeEngine{noWrite: true},
			wantKind:     KindIncomplete,
			wantSentinel: ErrIncomplete,
			wantOpened:   1,
			wantReleased: 1,
		},
		{
			name:         "empty output is incomplete",
			engine:       &fakeEngine{output: ""},
			wantKind:     KindIncomplete,
			wantSentinel: ErrIncomplete,
			wantOpened:   1,
			wantReleased: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfPath, tmpDir := setupPDF(t)
			if tt.missingSrc {
				pdfPath = filepath.Join(tmpDir, "missing.pdf")
			}
			dst := filepath.Join(tmpDir, "out", "report.docx")

			var logBuf bytes.Buffer
			o := newTestOrchestrator(tt.engine, &logBuf)
			res, err := o.Convert(context.Background(), mustRequest(t, pdfPath, dst))

			assert.Equal(t, tt.wantOpened, tt.engine.opened, "opened")
			assert.Equal(t, tt.wantReleased, tt.engine.released, "released")
			assert.Equal(t, dst, res.DestinationPath)
			assert.Equal(t, "fake", res.Engine)

			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.True(t, res.Succeeded)
				assert.NoError(t, res.Err)
				info, statErr := os.Stat(dst)
				require.NoError(t, statErr)
				assert.Positive(t, info.Size())
				return
			}

			require.Error(t, err)
			assert.False(t, res.Succeeded)
			assert.Equal(t, err, res.Err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.ErrorIs(t, err, tt.wantSentinel)
			assert.Contains(t, logBuf.String(), string(tt.wantKind))
		})
	}
}

func TestConvert_CreatesMissingParentDirectories(t *testing.T) {
	pdfPath, tmpDir := setupPDF(t)
	dst := filepath.Join(tmpDir, "a", "b", "c", "report.docx")

	var logBuf bytes.Buffer
	o := newTestOrchestrator(&fakeEngine{output: "docx"}, &logBuf)
	res, err := o.Convert(context.Background(), mustRequest(t, pdfPath, dst))
	require.NoError(t, err)
	assert.True(t, res.Succeeded)

	info, err := os.Stat(filepath.Join(tmpDir, "a", "b", "c"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConvert_ParentCreationFailure(t *testing.T) {
	pdfPath, tmpDir := setupPDF(t)

	// A regular file where a directory is needed makes MkdirAll fail.
	blocker := filepath.Join(tmpDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	dst := filepath.Join(blocker, "sub", "report.docx")

	engine := &fakeEngine{output: "docx"}
	var logBuf bytes.Buffer
	_, err := newTestOrchestrator(engine, &logBuf).Convert(context.Background(), mustRequest(t, pdfPath, dst))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StepPrepare, ce.Step)
	assert.Zero(t, engine.opened, "engine must not be opened when preparation fails")
}

func TestConvert_SourceIsDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	engine := &fakeEngine{output: "docx"}
	var logBuf bytes.Buffer
	_, err := newTestOrchestrator(engine, &logBuf).Convert(context.Background(),
		mustRequest(t, tmpDir, filepath.Join(tmpDir, "out.docx")))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, engine.opened)
}

func TestConvert_LogsStepTransitions(t *testing.T) {
	pdfPath, tmpDir := setupPDF(t)
	var logBuf bytes.Buffer
	o := newTestOrchestrator(&fakeEngine{output: "docx"}, &logBuf, WithInspector(fakeInspector{pages: 3}))

	_, err := o.Convert(context.Background(), mustRequest(t, pdfPath, filepath.Join(tmpDir, "r.docx")))
	require.NoError(t, err)

	out := logBuf.String()
	var last int
	for _, step := range []string{"start", "validated", "engine_invoked", "engine_completed", "verified"} {
		marker := `"step":"` + step + `"`
		idx := strings.Index(out, marker)
		require.GreaterOrEqual(t, idx, 0, "missing step %s in %s", step, out)
		assert.GreaterOrEqual(t, idx, last, "step %s out of order", step)
		last = idx
	}
	assert.Contains(t, out, `"pages":3`)
	assert.Contains(t, out, `"engine":"fake"`)
}

func TestConvert_InspectorFailureIsNotFatal(t *testing.T) {
	pdfPath, tmpDir := setupPDF(t)
	var logBuf bytes.Buffer
	o := newTestOrchestrator(&fakeEngine{output: "docx"}, &logBuf,
		WithInspector(fakeInspector{err: errors.New("malformed xref")}))

	res, err := o.Convert(context.Background(), mustRequest(t, pdfPath, filepath.Join(tmpDir, "r.docx")))
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Contains(t, logBuf.String(), "could not inspect source")
}

func TestConvert_Idempotent(t *testing.T) {
	pdfPath, tmpDir := setupPDF(t)
	dst := filepath.Join(tmpDir, "out", "report.docx")
	engine := &fakeEngine{output: "docx"}
	var logBuf bytes.Buffer
	o := newTestOrchestrator(engine, &logBuf)

	for i := 0; i < 2; i++ {
		res, err := o.Convert(context.Background(), mustRequest(t, pdfPath, dst))
		require.NoError(t, err, "run %d", i+1)
		assert.True(t, res.Succeeded, "run %d", i+1)
	}
	assert.Equal(t, 2, engine.opened)
	assert.Equal(t, 2, engine.released)
}

func TestNewRequest(t *testing.T) {
	_, err := NewRequest("", "out.docx")
	assert.Error(t, err)
	_, err = NewRequest("in.pdf", "  ")
	assert.Error(t, err)

	req, err := NewRequest("./docs/../in.pdf", "out/./report.docx")
	require.NoError(t, err)
	assert.Equal(t, "in.pdf", req.Source())
	assert.Equal(t, filepath.Join("out", "report.docx"), req.Destination())
}

func TestConvert_ReplacesExistingDestination(t *testing.T) {
	pdfPath, tmpDir := setupPDF(t)
	dst := filepath.Join(tmpDir, "report.docx")
	require.NoError(t, os.WriteFile(dst, []byte("output of an earlier run"), 0o644))

	var logBuf bytes.Buffer
	res, err := newTestOrchestrator(&fakeEngine{output: "PK new"}, &logBuf).
		Convert(context.Background(), mustRequest(t, pdfPath, dst))
	require.NoError(t, err)
	assert.True(t, res.Succeeded)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "PK new", string(data))
	assertNoBackups(t, tmpDir)
}

func TestConvert_UntouchedExistingDestinationIsIncomplete(t *testing.T) {
	pdfPath, tmpDir := setupPDF(t)
	dst := filepath.Join(tmpDir, "report.docx")
	require.NoError(t, os.WriteFile(dst, []byte("output of an earlier run"), 0o644))

	var logBuf bytes.Buffer
	_, err := newTestOrchestrator(&fakeEngine{noWrite: true}, &logBuf).
		Convert(context.Background(), mustRequest(t, pdfPath, dst))
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Contains(t, err.Error(), "wrote no file")

	data, readErr := os.ReadFile(dst)
	require.NoError(t, readErr)
	assert.Equal(t, "output of an earlier run", string(data))
	assertNoBackups(t, tmpDir)
}

// assertNoBackups checks that only the source and destination remain in dir.
func assertNoBackups(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"report.pdf", "report.docx"}, names)
}

func TestConvert_FailedRunKeepsExistingDestination(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
	}{
		{"engine error", &fakeEngine{convErr: errors.New("engine crashed")}},
		{"engine panic", &fakeEngine{panicMsg: "segfault"}},
		{"open failure", &fakeEngine{openErr: errors.New("image not found")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfPath, tmpDir := setupPDF(t)
			dst := filepath.Join(tmpDir, "report.docx")
			require.NoError(t, os.WriteFile(dst, []byte("earlier document"), 0o644))

			var logBuf bytes.Buffer
			_, err := newTestOrchestrator(tt.engine, &logBuf).
				Convert(context.Background(), mustRequest(t, pdfPath, dst))
			assert.ErrorIs(t, err, ErrEngine)

			data, readErr := os.ReadFile(dst)
			require.NoError(t, readErr, "existing destination must survive a failed run")
			assert.Equal(t, "earlier document", string(data))
			assertNoBackups(t, tmpDir)
		})
	}
}

func TestConvert_ReleasePanicIsLogged(t *testing.T) {
	pdfPath, tmpDir := setupPDF(t)
	var logBuf bytes.Buffer
	engine := &fakeEngine{output: "PK", closePanic: "release crashed"}

	_, err := newTestOrchestrator(engine, &logBuf).
		Convert(context.Background(), mustRequest(t, pdfPath, filepath.Join(tmpDir, "out.docx")))
	require.NoError(t, err)
	assert.Contains(t, logBuf.String(), "releasing engine handle")
	assert.Contains(t, logBuf.String(), "release crashed")
}

func TestConvert_DestinationIsSource(t *testing.T) {
	pdfPath, _ := setupPDF(t)
	engine := &fakeEngine{output: "docx"}
	var logBuf bytes.Buffer
	_, err := newTestOrchestrator(engine, &logBuf).
		Convert(context.Background(), mustRequest(t, pdfPath, pdfPath))

	assert.ErrorIs(t, err, ErrIO)
	assert.Zero(t, engine.opened)
	_, statErr := os.Stat(pdfPath)
	assert.NoError(t, statErr, "source must survive")
}
