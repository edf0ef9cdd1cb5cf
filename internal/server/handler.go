// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/pdf2word/internal/convert"
	"github.com/pdiddy/pdf2word/internal/pdfinfo"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// handleConvert serves POST /convert/pdf-to-word.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if !s.busy.TryLock() {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "A conversion is already in progress", "")
		return
	}
	defer s.busy.Unlock()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, hdr, err := r.FormFile(convert.UploadField)
	if err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large",
				fmt.Sprintf("limit is %d bytes", s.cfg.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded", err.Error())
		return
	}
	defer file.Close()

	if !declaredPDF(hdr) {
		writeError(w, http.StatusUnsupportedMediaType, "Only PDF files are allowed", "")
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.log.Error().Err(err).Str("upload_dir", s.cfg.UploadDir).Msg("creating upload directory")
		writeError(w, http.StatusInternalServerError, "Conversion failed", "")
		return
	}

	id := uuid.NewString()
	inputPath := filepath.Join(s.cfg.UploadDir, id+".pdf")
	outputPath := filepath.Join(s.cfg.UploadDir, id+".docx")
	defer removeQuietly(inputPath, outputPath)

	if err := saveUpload(file, inputPath); err != nil {
		s.log.Error().Err(err).Str("path", inputPath).Msg("storing upload")
		writeError(w, http.StatusInternalServerError, "Conversion failed", "")
		return
	}

	if ok, err := pdfinfo.FileHasHeader(inputPath); err != nil || !ok {
		writeError(w, http.StatusUnsupportedMediaType, "Only PDF files are allowed", "missing PDF signature")
		return
	}

	req, err := convert.NewRequest(inputPath, outputPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Conversion failed", "")
		return
	}
	res, convErr := s.conv.Convert(r.Context(), req)
	if s.recorder != nil {
		if _, err := s.recorder.Record(r.Context(), res); err != nil {
			s.log.Warn().Err(err).Msg("recording conversion history")
		}
	}
	if convErr != nil {
		kind := convert.KindOf(convErr)
		resp := map[string]string{"error": "Conversion failed"}
		if kind != "" {
			resp["kind"] = string(kind)
		}
		writeJSON(w, statusFor(kind), resp)
		return
	}

	out, err := os.Open(outputPath)
	if err != nil {
		s.log.Error().Err(err).Str("path", outputPath).Msg("opening converted document")
		writeError(w, http.StatusInternalServerError, "Conversion failed", "")
		return
	}
	defer out.Close()
	info, err := out.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Conversion failed", "")
		return
	}

	name := downloadName(hdr.Filename)
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), out)
}

// statusFor maps a failure kind to an HTTP status.
func statusFor(k convert.Kind) int {
	switch k {
	case convert.KindEngine, convert.KindIncomplete:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func declaredPDF(hdr *multipart.FileHeader) bool {
	mt, _, err := mime.ParseMediaType(hdr.Header.Get("Content-Type"))
	return err == nil && mt == "application/pdf"
}

func saveUpload(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// downloadName derives the attachment name from the uploaded file name:
// report.pdf becomes report.docx.
func downloadName(uploaded string) string {
	base := filepath.Base(strings.ReplaceAll(uploaded, `\`, "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "document"
	}
	return stem + ".docx"
}

func removeQuietly(paths ...string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}
