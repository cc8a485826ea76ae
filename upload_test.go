package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/Seednode/smingo/games/bingo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upload struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func uploadRequest(t *testing.T, u upload) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	require.NoError(t, mw.WriteField("note", "hello"))
	if u.field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, u.field, u.filename))
		h.Set("Content-Type", u.contentType)

		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	r.Header.Set("X-Forwarded-User", "alice")

	return r
}

func uploadConfig(upstreamURL string) *Config {
	cfg := testConfig()
	cfg.maxUploadSize = 64
	cfg.uploadEndpoint = upstreamURL
	cfg.uploadKey = "secret"

	return cfg
}

func runUpload(t *testing.T, upstreamURL string, r *http.Request, opts ...func(*Config)) (int, map[string]any) {
	t.Helper()

	cfg := uploadConfig(upstreamURL)
	for _, opt := range opts {
		opt(cfg)
	}

	errs := make(chan error, 4)
	w := httptest.NewRecorder()
	newUploader(cfg, bingo.AttachmentPolicy{Host: cfg.attachmentHost}).serve(errs)(w, r, nil)

	var out map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))

	return w.Code, out
}

func imageHost(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upload", r.FormValue("action"))
		assert.Equal(t, "secret", r.FormValue("key"))
		assert.Equal(t, "json", r.FormValue("format"))

		f, _, err := r.FormFile("source")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			assert.Equal(t, "PNGDATA", string(data))
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func slowImageHost(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		time.Sleep(delay)
		_, _ = w.Write([]byte(`{"status_code":200,"image":{"name":"x","display_url":"https://i.imgcdn.dev/abc.png"}}`))
	}))
	t.Cleanup(srv.Close)

	return srv
}

var catUpload = upload{field: "attachment", filename: "cat.png", contentType: "image/png", data: []byte("PNGDATA")}

func TestUploadSuccess(t *testing.T) {
	upstream := imageHost(t, http.StatusOK, `{"status_code":200,"image":{"name":"x","display_url":"https://i.imgcdn.dev/abc.png"}}`)

	status, out := runUpload(t, upstream.URL, uploadRequest(t, catUpload))

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{
		"url":  "https://i.imgcdn.dev/abc.png",
		"type": bingo.AttachmentImage,
		"name": "cat.png",
	}, out)
}

func TestUploadAlternateField(t *testing.T) {
	upstream := imageHost(t, http.StatusOK, `{"data":{"images":[{"url":"https://imgcdn.dev/i/clip"}]}}`)

	clip := upload{field: "source", filename: "clip.mp4", contentType: "video/mp4", data: []byte("PNGDATA")}
	status, out := runUpload(t, upstream.URL, uploadRequest(t, clip))

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, bingo.AttachmentVideo, out["type"])
	assert.Equal(t, "https://imgcdn.dev/i/clip", out["url"])
}

func TestUploadRejectsLocally(t *testing.T) {
	for _, tc := range []struct {
		name   string
		upload upload
		status int
	}{
		{"no file", upload{}, http.StatusBadRequest},
		{"empty file", upload{field: "file", filename: "a.png", contentType: "image/png"}, http.StatusBadRequest},
		{"too large", upload{field: "file", filename: "a.png", contentType: "image/png", data: bytes.Repeat([]byte("x"), 65)}, http.StatusRequestEntityTooLarge},
		{"not media", upload{field: "file", filename: "notes.txt", contentType: "text/plain", data: []byte("hi")}, http.StatusUnsupportedMediaType},
	} {
		t.Run(tc.name, func(t *testing.T) {
			status, out := runUpload(t, "http://127.0.0.1:1/unused", uploadRequest(t, tc.upload))

			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestUploadUpstreamFailures(t *testing.T) {
	for _, tc := range []struct {
		name     string
		status   int
		body     string
		want     int
		wantText string
	}{
		{"upstream error status", http.StatusInternalServerError, `{"error":{"message":"disk full"}}`, http.StatusInternalServerError, "disk full"},
		{"status code in body", http.StatusOK, `{"status_code":400,"status_txt":"Bad request"}`, http.StatusBadGateway, "Bad request"},
		{"error without message", http.StatusForbidden, `{}`, http.StatusForbidden, "Upload was rejected by the image host."},
		{"not json", http.StatusOK, `<html>`, http.StatusBadGateway, "Unexpected response from the image host."},
		{"no url", http.StatusOK, `{"image":{}}`, http.StatusBadGateway, "Image host did not return a usable URL."},
		{"foreign url", http.StatusOK, `{"url":"https://evil.example/a.png"}`, http.StatusBadGateway, "Image host returned an unsupported URL."},
	} {
		t.Run(tc.name, func(t *testing.T) {
			upstream := imageHost(t, tc.status, tc.body)

			status, out := runUpload(t, upstream.URL, uploadRequest(t, catUpload))

			assert.Equal(t, tc.want, status)
			assert.Equal(t, tc.wantText, out["error"])
		})
	}
}

func TestUploadUnreachableUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	status, out := runUpload(t, url, uploadRequest(t, catUpload))

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "Failed to contact the image host.", out["error"])
}

func TestUploadRequiresIdentity(t *testing.T) {
	r := uploadRequest(t, catUpload)
	r.Header.Del("X-Forwarded-User")

	cfg := testConfig()
	w := httptest.NewRecorder()
	newUploader(cfg, bingo.AttachmentPolicy{}).serve(make(chan error, 1))(w, r, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExtractUploadURL(t *testing.T) {
	assert.Equal(t, "https://a", extractUploadURL(map[string]any{"url": "https://a", "image": map[string]any{"url": "https://b"}}))
	assert.Equal(t, "https://b", extractUploadURL(map[string]any{"url": "ftp://a", "medium": map[string]any{"url": "https://b"}}))
	assert.Empty(t, extractUploadURL("https://a"))
	assert.Empty(t, extractUploadURL(nil))
}

func TestUploadUpstreamTimeout(t *testing.T) {
	upstream := slowImageHost(t, 300*time.Millisecond)

	status, out := runUpload(t, upstream.URL, uploadRequest(t, catUpload), func(cfg *Config) {
		cfg.uploadTimeout = 50 * time.Millisecond
	})

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "Failed to contact the image host.", out["error"])
}

func TestUploadOutlivesServerTimeouts(t *testing.T) {
	upstream := slowImageHost(t, 300*time.Millisecond)

	cfg := uploadConfig(upstream.URL)
	cfg.uploadTimeout = 2 * time.Second
	handle := newUploader(cfg, bingo.AttachmentPolicy{Host: cfg.attachmentHost}).serve(make(chan error, 4))

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle(w, r, nil)
	}))
	srv.Config.ReadTimeout = 100 * time.Millisecond
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	defer srv.Close()

	r := uploadRequest(t, catUpload)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/upload", r.Body)
	require.NoError(t, err)
	req.Header = r.Header.Clone()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://i.imgcdn.dev/abc.png", out["url"])
}
