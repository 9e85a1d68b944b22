// Package inventory manages the capsule catalogue and keeps the tag
// registry counts in step with capsule saves and deletes.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/store"
)

// Service is the admin-facing catalogue API.
type Service struct {
	capsules store.CatalogueStore
	tags     store.TagStore

	// Serializes read-diff-write so concurrent saves cannot double count.
	mu sync.Mutex
}

// New returns a Service over the given stores.
func New(capsules store.CatalogueStore, tags store.TagStore) *Service {
	return &Service{capsules: capsules, tags: tags}
}

// SaveCapsule creates the capsule when it has no id or the id is unknown,
// and updates it otherwise.
func (s *Service) SaveCapsule(ctx context.Context, c catalog.Capsule) (catalog.Capsule, error) {
	c.Title = strings.TrimSpace(c.Title)
	if err := c.Validate(); err != nil {
		return catalog.Capsule{}, err
	}
	c.Tags = normalizeTags(c.Tags)
	if strings.TrimSpace(c.Slug) == "" {
		c.Slug = catalog.Slugify(c.Title)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var previous []string
	var saved catalog.Capsule
	var err error

	existing, getErr := s.lookup(ctx, c.ID)
	switch {
	case getErr == nil:
		previous = existing.Tags
		saved, err = s.capsules.UpdateCapsule(ctx, c)
	case errors.Is(getErr, store.ErrNotFound):
		saved, err = s.capsules.CreateCapsule(ctx, c)
	default:
		return catalog.Capsule{}, getErr
	}
	if err != nil {
		return catalog.Capsule{}, err
	}

	added, removed := diffTags(previous, saved.Tags)
	if err := s.adjust(ctx, added, 1); err != nil {
		return saved, err
	}
	if err := s.adjust(ctx, removed, -1); err != nil {
		return saved, err
	}
	return saved, nil
}

// DeleteCapsule removes the capsule and releases its tags.
func (s *Service) DeleteCapsule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.capsules.GetCapsule(ctx, id)
	if err != nil {
		return err
	}
	if err := s.capsules.DeleteCapsule(ctx, id); err != nil {
		return err
	}
	return s.adjust(ctx, normalizeTags(existing.Tags), -1)
}

// SetPublished toggles storefront visibility.
func (s *Service) SetPublished(ctx context.Context, id string, published bool) (catalog.Capsule, error) {
	if err := s.capsules.SetPublished(ctx, id, published); err != nil {
		return catalog.Capsule{}, err
	}
	return s.capsules.GetCapsule(ctx, id)
}

// Get returns a capsule regardless of publish state.
func (s *Service) Get(ctx context.Context, id string) (catalog.Capsule, error) {
	return s.capsules.GetCapsule(ctx, id)
}

// List returns every capsule.
func (s *Service) List(ctx context.Context) ([]catalog.Capsule, error) {
	return s.capsules.ListCapsules(ctx)
}

// ListPublished returns the capsules visible on the storefront, optionally
// filtered by tag.
func (s *Service) ListPublished(ctx context.Context, tag string) ([]catalog.Capsule, error) {
	all, err := s.capsules.ListCapsules(ctx)
	if err != nil {
		return nil, err
	}
	tag = catalog.NormalizeTag(tag)
	out := make([]catalog.Capsule, 0, len(all))
	for _, c := range all {
		if !c.Published {
			continue
		}
		if tag != "" && !hasTag(c.Tags, tag) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// GetPublished returns a storefront-visible capsule. Unpublished capsules
// read as not found.
func (s *Service) GetPublished(ctx context.Context, id string) (catalog.Capsule, error) {
	c, err := s.capsules.GetCapsule(ctx, id)
	if err != nil {
		return catalog.Capsule{}, err
	}
	if !c.Published {
		return catalog.Capsule{}, fmt.Errorf("capsule %s: %w", id, store.ErrNotFound)
	}
	return c, nil
}

// Tags lists the tag registry.
func (s *Service) Tags(ctx context.Context) ([]catalog.Tag, error) {
	return s.tags.ListTags(ctx)
}

func (s *Service) lookup(ctx context.Context, id string) (catalog.Capsule, error) {
	if strings.TrimSpace(id) == "" {
		return catalog.Capsule{}, store.ErrNotFound
	}
	return s.capsules.GetCapsule(ctx, id)
}

func (s *Service) adjust(ctx context.Context, tags []string, delta int64) error {
	for _, tag := range tags {
		if err := s.tags.AdjustTag(ctx, tag, delta); err != nil {
			return fmt.Errorf("adjust tag %s: %w", tag, err)
		}
	}
	return nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = catalog.NormalizeTag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func diffTags(before, after []string) (added, removed []string) {
	before = normalizeTags(before)
	after = normalizeTags(after)
	for _, t := range after {
		if !hasTag(before, t) {
			added = append(added, t)
		}
	}
	for _, t := range before {
		if !hasTag(after, t) {
			removed = append(removed, t)
		}
	}
	return added, removed
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if catalog.NormalizeTag(t) == tag {
			return true
		}
	}
	return false
}
