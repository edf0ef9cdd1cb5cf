// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfinfo reads PDF metadata with pdfcpu. It is advisory: callers
// treat failures as warnings, never as conversion errors.
package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Magic is the byte sequence every PDF file starts with.
var Magic = []byte("%PDF-")

func init() {
	// Keep pdfcpu from creating a config directory under the user's home.
	model.ConfigPath = "disable"
}

// Inspector reports page counts. The zero value is ready to use.
type Inspector struct{}

// PageCount returns the number of pages in the PDF at path. Parser panics on
// malformed input are returned as errors.
func (Inspector) PageCount(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("reading page count of %s: parser panic: %v", path, r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err = api.PageCount(f, conf)
	if err != nil {
		return 0, fmt.Errorf("reading page count of %s: %w", path, err)
	}
	return n, nil
}

// HasHeader reports whether r starts with the PDF magic bytes.
func HasHeader(r io.Reader) (bool, error) {
	buf := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(buf, Magic), nil
}

// FileHasHeader reports whether the file at path starts with the PDF magic
// bytes.
func FileHasHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	return HasHeader(f)
}
