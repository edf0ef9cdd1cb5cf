// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf2word/internal/httputil"
)

const (
	// ConvertRoute is the conversion endpoint path shared by the remote
	// engine and the serve command.
	ConvertRoute = "/convert/pdf-to-word"

	// UploadField is the multipart field carrying the PDF.
	UploadField = "file"

	defaultRemoteTimeout = 5 * time.Minute
)

// RemoteEngine converts PDFs by uploading them to a conversion service that
// exposes POST /convert/pdf-to-word and answers with the DOCX body.
type RemoteEngine struct {
	endpoint   string
	token      string
	client     *http.Client
	maxRetries int
	log        zerolog.Logger
}

// NewRemoteEngine creates an engine for the service at baseURL. token, when
// non-empty, is sent as a bearer token.
func NewRemoteEngine(baseURL, token string, timeout time.Duration, maxRetries int, log zerolog.Logger) (*RemoteEngine, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote engine requires engine.remote_url")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote engine URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &RemoteEngine{
		endpoint:   strings.TrimRight(baseURL, "/") + ConvertRoute,
		token:      token,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		log:        log,
	}, nil
}

// Name implements Engine.
func (e *RemoteEngine) Name() string { return "remote" }

// Open opens the source file; the handle keeps it open until Close.
func (e *RemoteEngine) Open(_ context.Context, sourcePath string) (Handle, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", sourcePath, err)
	}
	return &remoteHandle{engine: e, file: f}, nil
}

type remoteHandle struct {
	engine *RemoteEngine
	file   *os.File
}

func (h *remoteHandle) Convert(ctx context.Context, destinationPath string) error {
	body, contentType, err := h.multipartBody()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.engine.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if h.engine.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.engine.token)
	}

	resp, err := httputil.DoWithRetry(ctx, h.engine.client, req, h.engine.maxRetries)
	if err != nil {
		return fmt.Errorf("posting %s to %s: %w", h.file.Name(), h.engine.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("conversion service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	out, err := os.Create(destinationPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destinationPath, err)
	}
	n, err := io.Copy(out, resp.Body)
	if err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", destinationPath, err)
	}
	h.engine.log.Debug().Int64("bytes", n).Msg("remote conversion received")
	return out.Close()
}

func (h *remoteHandle) multipartBody() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, UploadField, filepath.Base(h.file.Name())))
	hdr.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, h.file); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", h.file.Name(), err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (h *remoteHandle) Close() error {
	return h.file.Close()
}
