// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a well-formed PDF with the given number of empty pages,
// computing xref offsets so no repair is needed.
func minimalPDF(pages int) []byte {
	var objs []string
	kids := make([]string, pages)
	for i := 0; i < pages; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages),
	)
	for i := 0; i < pages; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return []byte(b.String())
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestPageCount(t *testing.T) {
	path := writeFile(t, "three.pdf", minimalPDF(3))

	n, err := Inspector{}.PageCount(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPageCountMissingFile(t *testing.T) {
	_, err := Inspector{}.PageCount(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}

func TestPageCountNotAPDF(t *testing.T) {
	path := writeFile(t, "fake.pdf", []byte("%PDF-1.7 fake"))

	_, err := Inspector{}.PageCount(path)
	assert.Error(t, err)
}

func TestHasHeader(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"pdf", "%PDF-1.7\n...", true},
		{"exact magic", "%PDF-", true},
		{"text", "hello world", false},
		{"short", "%PD", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HasHeader(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileHasHeader(t *testing.T) {
	ok, err := FileHasHeader(writeFile(t, "a.pdf", minimalPDF(1)))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = FileHasHeader(writeFile(t, "a.txt", []byte("plain text")))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = FileHasHeader(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
