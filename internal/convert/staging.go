// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// staging is a private directory an engine writes into before its output is
// moved to the destination. Handles own one and remove it on Close.
type staging struct {
	dir string
}

func newStaging(prefix string) (*staging, error) {
	dir, err := os.MkdirTemp("", prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	return &staging{dir: dir}, nil
}

func (s *staging) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *staging) remove() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("removing staging directory %s: %w", s.dir, err)
	}
	return nil
}

// collect moves the staged file name to destination. A missing staged file
// is not an error: the engine exited cleanly without output, and the caller's
// verification decides what that means.
func (s *staging) collect(name, destination string) error {
	src := s.path(name)
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return moveFile(src, destination)
}

// moveFile renames src to dst, falling back to copy-and-remove when the two
// paths are on different file systems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	return os.Remove(src)
}

// docxName returns the DOCX file name matching a PDF path
// ("papers/report.pdf" -> "report.docx").
func docxName(pdfPath string) string {
	base := filepath.Base(pdfPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".docx"
}
