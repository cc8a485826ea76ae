/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/smingo/games/bingo"
	"github.com/julienschmidt/httprouter"
)

var uploadFields = []string{"attachment", "file", "source"}

type uploadError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

func mediaKind(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return bingo.AttachmentVideo
	case strings.HasPrefix(mimeType, "image/"):
		return bingo.AttachmentImage
	}
	return ""
}

// extractUploadURL finds the first http(s) URL in an image host response,
// looking at the top level first and then inside the usual wrapper objects.
func extractUploadURL(payload any) string {
	record, ok := payload.(map[string]any)
	if !ok {
		return ""
	}

	for _, key := range []string{"url", "display_url", "url_viewer"} {
		if s, ok := record[key].(string); ok && strings.HasPrefix(s, "http") {
			return s
		}
	}

	for _, key := range []string{"image", "data", "upload", "medium", "thumb"} {
		if u := extractUploadURL(record[key]); u != "" {
			return u
		}
	}

	if images, ok := record["images"].([]any); ok {
		for _, entry := range images {
			if u := extractUploadURL(entry); u != "" {
				return u
			}
		}
	}

	return ""
}

func extractUploadError(payload any) string {
	record, ok := payload.(map[string]any)
	if !ok {
		return ""
	}

	switch e := record["error"].(type) {
	case string:
		if e != "" {
			return e
		}
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	}

	for _, key := range []string{"message", "status_txt"} {
		if s, ok := record[key].(string); ok && s != "" {
			return s
		}
	}

	return ""
}

type Uploader struct {
	cfg    *Config
	policy bingo.AttachmentPolicy
	client *http.Client
}

func newUploader(cfg *Config, policy bingo.AttachmentPolicy) *Uploader {
	return &Uploader{
		cfg:    cfg,
		policy: policy,
		client: &http.Client{Timeout: cfg.uploadTimeout},
	}
}

func (u *Uploader) forward(r *http.Request, file io.Reader, filename string) (*http.Response, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, field := range [][2]string{
		{"action", "upload"},
		{"key", u.cfg.uploadKey},
		{"format", "json"},
	} {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return nil, err
		}
	}

	if filename == "" {
		filename = "upload"
	}
	part, err := mw.CreateFormFile("source", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, u.cfg.uploadEndpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return u.client.Do(req)
}

func (u *Uploader) serve(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		// One upload timeout for the body, one for the image host.
		deadline := startTime.Add(2*u.cfg.uploadTimeout + timeout)
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(deadline)
		_ = rc.SetWriteDeadline(deadline)

		securityHeaders(u.cfg, w)

		identity, ok := requireIdentity(u.cfg, w, r)
		if !ok {
			return
		}

		fail := func(status int, msg string) {
			if err := writeJSON(w, status, uploadError{Error: msg}); err != nil {
				errs <- err
			}
		}

		tooLarge := fmt.Sprintf("Attachment is too large. Max %s.", humanReadableSize(u.cfg.maxUploadSize))

		// Leave room for the multipart framing around the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, u.cfg.maxUploadSize+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				fail(http.StatusRequestEntityTooLarge, tooLarge)
				return
			}
			fail(http.StatusBadRequest, "Invalid upload payload.")
			return
		}
		defer r.MultipartForm.RemoveAll()

		var (
			file   multipart.File
			header *multipart.FileHeader
		)
		for _, field := range uploadFields {
			f, h, err := r.FormFile(field)
			if err == nil {
				file, header = f, h
				break
			}
		}
		if file == nil {
			fail(http.StatusBadRequest, "No file provided.")
			return
		}
		defer file.Close()

		if header.Size == 0 {
			fail(http.StatusBadRequest, "File is empty.")
			return
		}
		if header.Size > u.cfg.maxUploadSize {
			fail(http.StatusRequestEntityTooLarge, tooLarge)
			return
		}

		mimeType := header.Header.Get("Content-Type")
		ext := bingo.FileExtension(header.Filename)
		if mediaKind(mimeType) == "" && !bingo.IsMediaExtension(ext) {
			fail(http.StatusUnsupportedMediaType, "Only images or videos are allowed.")
			return
		}

		resp, err := u.forward(r, file, header.Filename)
		if err != nil {
			u.cfg.log.Error().Err(err).Msg("image host request failed")
			fail(http.StatusBadGateway, "Failed to contact the image host.")
			return
		}
		defer resp.Body.Close()

		var payload any
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			u.cfg.log.Error().Err(err).Int("status", resp.StatusCode).Msg("image host response not JSON")
			fail(http.StatusBadGateway, "Unexpected response from the image host.")
			return
		}

		upstreamErr := extractUploadError(payload)
		rejected := resp.StatusCode < 200 || resp.StatusCode > 299 || upstreamErr != ""
		if record, ok := payload.(map[string]any); ok {
			if code, ok := record["status_code"].(float64); ok && code >= 300 {
				rejected = true
			}
		}
		if rejected {
			status := http.StatusBadGateway
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				status = resp.StatusCode
			}
			if upstreamErr == "" {
				upstreamErr = "Upload was rejected by the image host."
			}
			u.cfg.log.Error().Int("status", resp.StatusCode).Str("error", upstreamErr).Msg("image host rejected upload")
			fail(status, upstreamErr)
			return
		}

		link := extractUploadURL(payload)
		if link == "" {
			u.cfg.log.Error().Msg("image host returned no URL")
			fail(http.StatusBadGateway, "Image host did not return a usable URL.")
			return
		}

		declared := mediaKind(mimeType)
		if declared == "" {
			declared = ext
		}
		att, ok := u.policy.Sanitize(link, declared, header.Filename)
		if !ok {
			u.cfg.log.Error().Str("url", link).Msg("image host URL failed sanitization")
			fail(http.StatusBadGateway, "Image host returned an unsupported URL.")
			return
		}
		if att.Name == "" {
			att.Name = header.Filename
		}

		if err := writeJSON(w, http.StatusOK, att); err != nil {
			errs <- err
			return
		}

		logf(u.cfg, "UPLOAD: %s (%s) from %s (%s) in %s",
			att.Name,
			humanReadableSize(header.Size),
			identity,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
