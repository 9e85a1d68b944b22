// Package bundle packages the purchased assets of an order into a zip
// archive with one folder per line item.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Metadata is written as metadata.json in every item folder.
type Metadata struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Price       decimal.Decimal     `json:"price"`
	Quantity    int                 `json:"quantity"`
	Image       string              `json:"image,omitempty"`
	Gallery     []string            `json:"gallery,omitempty"`
	Variations  []catalog.Variation `json:"variations,omitempty"`
	Resolutions map[string]string   `json:"resolutions,omitempty"`
	GeneratedAt time.Time           `json:"generatedAt"`
}

// Builder assembles bundles.
type Builder struct {
	Fetcher Fetcher
	Logger  *slog.Logger
	Now     func() time.Time
	// Concurrency bounds parallel fetches per item and parallel items
	// (default 4).
	Concurrency int
}

// NewBuilder returns a Builder using fetcher.
func NewBuilder(fetcher Fetcher, logger *slog.Logger) *Builder {
	return &Builder{Fetcher: fetcher, Logger: logger}
}

type asset struct {
	name string
	url  string
	data []byte
}

type folder struct {
	name     string
	metadata []byte
	assets   []asset
}

// FolderName is the archive folder for the item at 0-based index i.
func FolderName(i int, item catalog.LineItem) string {
	slug := catalog.Slugify(item.Title)
	if slug == "" {
		slug = catalog.Slugify(item.ID)
	}
	if slug == "" {
		slug = "item"
	}
	return fmt.Sprintf("%02d-%s", i+1, slug)
}

// Build fetches every item's assets and returns the zip archive. Assets that
// fail to download are skipped; only archive encoding errors are returned.
func (b *Builder) Build(ctx context.Context, items []catalog.LineItem) ([]byte, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	limit := b.Concurrency
	if limit <= 0 {
		limit = 4
	}
	generatedAt := now().UTC()

	folders := make([]folder, len(items))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			f, err := b.buildFolder(ctx, logger, i, item, generatedAt, limit)
			if err != nil {
				return err
			}
			folders[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range folders {
		if err := writeEntry(zw, f.name+"/metadata.json", f.metadata, generatedAt); err != nil {
			return nil, err
		}
		for _, a := range f.assets {
			if a.data == nil {
				continue
			}
			if err := writeEntry(zw, f.name+"/"+a.name, a.data, generatedAt); err != nil {
				return nil, err
			}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize bundle: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *Builder) buildFolder(ctx context.Context, logger *slog.Logger, i int, item catalog.LineItem, generatedAt time.Time, limit int) (folder, error) {
	meta, err := json.MarshalIndent(Metadata{
		ID:          item.ID,
		Title:       item.Title,
		Price:       item.Price,
		Quantity:    item.Quantity,
		Image:       item.Image,
		Gallery:     item.Gallery,
		Variations:  item.Variations,
		Resolutions: item.Resolutions,
		GeneratedAt: generatedAt,
	}, "", "  ")
	if err != nil {
		return folder{}, fmt.Errorf("encode metadata for %s: %w", item.ID, err)
	}
	f := folder{name: FolderName(i, item), metadata: meta, assets: assetsFor(item)}
	if b.Fetcher == nil {
		f.assets = nil
		return f, nil
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for j := range f.assets {
		a := &f.assets[j]
		g.Go(func() error {
			data, err := b.Fetcher.Fetch(ctx, a.url)
			if err != nil {
				logger.Warn("bundle asset skipped", "item", item.ID, "asset", a.name, "url", a.url, "error", err)
				return nil
			}
			if data == nil {
				data = []byte{}
			}
			a.data = data
			return nil
		})
	}
	_ = g.Wait()
	return f, nil
}

func assetsFor(item catalog.LineItem) []asset {
	var out []asset
	add := func(base, url string) {
		url = strings.TrimSpace(url)
		if url == "" {
			return
		}
		out = append(out, asset{name: base + "." + ExtFromURL(url), url: url})
	}
	add("primary", item.Image)
	for n, g := range item.Gallery {
		add(fmt.Sprintf("gallery-%d", n+1), g)
	}
	for n, v := range item.Variations {
		add(fmt.Sprintf("variation-%d", n+1), v.Image)
	}
	names := make([]string, 0, len(item.Resolutions))
	for name := range item.Resolutions {
		names = append(names, name)
	}
	sort.Strings(names)
	// Keys can fold to the same label ("4K" and "4k"), so repeats get a
	// numeric suffix.
	used := make(map[string]bool, len(names))
	for _, name := range names {
		label := catalog.Slugify(name)
		if label == "" {
			label = "default"
		}
		unique := label
		for n := 2; used[unique]; n++ {
			unique = fmt.Sprintf("%s-%d", label, n)
		}
		used[unique] = true
		add("resolution-"+unique, item.Resolutions[name])
	}
	return out
}

func writeEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
