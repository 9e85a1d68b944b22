package imagehost

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestUploadWithoutConfigMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, CloudName: "demo"})
	_, err := c.Upload(context.Background(), "a.png", strings.NewReader("png"))

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.Missing) != 1 || cfgErr.Missing[0] != "upload preset" {
		t.Errorf("unexpected missing list: %v", cfgErr.Missing)
	}
	if hits.Load() != 0 {
		t.Errorf("expected no HTTP calls, got %d", hits.Load())
	}
}

func TestValidateReportsBothFields(t *testing.T) {
	err := New(Config{}).Validate()
	if err == nil || !strings.Contains(err.Error(), "cloud name, upload preset") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUploadSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1_1/demo/image/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("upload_preset"); got != "unsigned" {
			t.Errorf("upload_preset = %q", got)
		}
		if got := r.FormValue("folder"); got != "capsules" {
			t.Errorf("folder = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		if hdr.Filename != "harbor.png" || string(body) != "png-bytes" {
			t.Errorf("unexpected file %s %q", hdr.Filename, body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"secure_url":"https://res.example.com/harbor.png","width":1200,"height":800,"format":"png"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, CloudName: "demo", UploadPreset: "unsigned", Folder: "capsules"})
	img, err := c.Upload(context.Background(), "/tmp/harbor.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if img.URL != "https://res.example.com/harbor.png" || img.Width != 1200 || img.Height != 800 || img.Format != "png" {
		t.Errorf("unexpected image: %+v", img)
	}
}

func TestUploadReportsHostMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, CloudName: "demo", UploadPreset: "nope"})
	_, err := c.Upload(context.Background(), "a.png", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "Upload preset not found") || !strings.Contains(err.Error(), "400") {
		t.Fatalf("unexpected error: %v", err)
	}
}
