// Package imagehost uploads catalogue images to a Cloudinary-style host
// using unsigned multipart uploads.
package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL is the public Cloudinary API endpoint.
const DefaultBaseURL = "https://api.cloudinary.com"

// ConfigurationError reports missing host configuration. It is returned
// before any network call is made.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "image host is not configured: missing " + strings.Join(e.Missing, ", ")
}

// Config identifies the upload target.
type Config struct {
	BaseURL      string
	CloudName    string
	UploadPreset string
	Folder       string
	Timeout      time.Duration
}

// Image is the uploaded asset as reported by the host.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Client uploads images.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client. Configuration is checked on each Upload so a
// partially configured service can still start.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Validate returns a ConfigurationError when the cloud name or upload
// preset is missing.
func (c *Client) Validate() error {
	var missing []string
	if strings.TrimSpace(c.cfg.CloudName) == "" {
		missing = append(missing, "cloud name")
	}
	if strings.TrimSpace(c.cfg.UploadPreset) == "" {
		missing = append(missing, "upload preset")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Upload sends the file to {base}/v1_1/{cloud}/image/upload.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (Image, error) {
	if err := c.Validate(); err != nil {
		return Image{}, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return Image{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return Image{}, fmt.Errorf("reading upload: %w", err)
	}
	if err := mw.WriteField("upload_preset", c.cfg.UploadPreset); err != nil {
		return Image{}, err
	}
	if c.cfg.Folder != "" {
		if err := mw.WriteField("folder", c.cfg.Folder); err != nil {
			return Image{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return Image{}, err
	}

	endpoint := fmt.Sprintf("%s/v1_1/%s/image/upload", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return Image{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("image upload: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var out uploadResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return Image{}, fmt.Errorf("image upload failed (status %d): %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return Image{}, fmt.Errorf("decoding upload response: %w", decodeErr)
	}

	url := out.SecureURL
	if url == "" {
		url = out.URL
	}
	if url == "" {
		return Image{}, fmt.Errorf("image upload: response has no url")
	}
	return Image{URL: url, Width: out.Width, Height: out.Height, Format: out.Format}, nil
}
