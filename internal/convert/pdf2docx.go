// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf2word/internal/container"
	"github.com/pdiddy/pdf2word/pkg/types"
)

const (
	defaultImage = "pdf2docx:latest"

	containerInDir  = "/in"
	containerOutDir = "/out"
)

// ContainerEngine converts PDFs by running the pdf2docx CLI inside a
// container image. The container runtime (docker or podman) is resolved when
// a handle is opened, so a missing runtime surfaces as an engine failure
// rather than a startup failure.
type ContainerEngine struct {
	resolve func(context.Context) (container.Runtime, error)
	image   string
	user    string
	log     zerolog.Logger
}

// NewContainerEngine creates an engine that runs image through the runtime
// selected by choice.
func NewContainerEngine(choice types.RuntimeChoice, image string, log zerolog.Logger) *ContainerEngine {
	return newContainerEngine(func(ctx context.Context) (container.Runtime, error) {
		return container.SelectRuntime(ctx, choice)
	}, image, log)
}

func newContainerEngine(resolve func(context.Context) (container.Runtime, error), image string, log zerolog.Logger) *ContainerEngine {
	if image == "" {
		image = defaultImage
	}
	return &ContainerEngine{
		resolve: resolve,
		image:   image,
		user:    hostUser(),
		log:     log,
	}
}

// Name implements Engine.
func (e *ContainerEngine) Name() string { return "pdf2docx-container" }

// Open resolves the runtime, checks the image is present locally, and
// creates the staging directory the container writes into.
func (e *ContainerEngine) Open(ctx context.Context, sourcePath string) (Handle, error) {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", sourcePath, err)
	}

	rt, err := e.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := rt.ImageExists(ctx, e.image); err != nil {
		return nil, fmt.Errorf("pdf2docx image not available in %s: %w", rt.Name(), err)
	}

	st, err := newStaging("pdf2word-container")
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("runtime", rt.Name()).Str("image", e.image).Str("staging", st.dir).Msg("container engine ready")

	return &containerHandle{engine: e, runtime: rt, source: abs, stage: st}, nil
}

type containerHandle struct {
	engine  *ContainerEngine
	runtime container.Runtime
	source  string
	stage   *staging
}

// Convert mounts the source directory read-only at /in and the staging
// directory at /out, runs pdf2docx, and moves the result to destinationPath.
func (h *containerHandle) Convert(ctx context.Context, destinationPath string) error {
	name := docxName(h.source)
	var output bytes.Buffer
	spec := container.RunSpec{
		Image: h.engine.image,
		User:  h.engine.user,
		Mounts: []container.Mount{
			{Source: filepath.Dir(h.source), Target: containerInDir, ReadOnly: true},
			{Source: h.stage.dir, Target: containerOutDir},
		},
		Args: []string{
			"pdf2docx", "convert",
			containerInDir + "/" + filepath.Base(h.source),
			containerOutDir + "/" + name,
		},
		Stdout: &output,
		Stderr: &output,
	}

	if err := h.runtime.Run(ctx, spec); err != nil {
		return fmt.Errorf("%w: %s", err, lastLines(output.String(), 5))
	}
	h.engine.log.Debug().Str("output", lastLines(output.String(), 5)).Msg("pdf2docx finished")

	return h.stage.collect(name, destinationPath)
}

func (h *containerHandle) Close() error {
	return h.stage.remove()
}

// hostUser returns "uid:gid" so files written into the staging mount are
// owned by the caller, or "" where the platform has no numeric ids.
func hostUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 || gid < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}

// lastLines returns at most n trailing non-empty lines of s, joined by " | ".
func lastLines(s string, n int) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
