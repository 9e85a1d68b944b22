package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/store"
)

var stateTables = []string{"orders", "capsules", "collector_contacts", "promo_codes", "tags"}

// Snapshot returns the full contents of the database.
func (s *Store) Snapshot(ctx context.Context) (store.State, error) {
	if err := s.ready(ctx); err != nil {
		return store.State{}, err
	}
	state := store.State{
		Orders:   make(map[string]catalog.Order),
		Capsules: make(map[string]catalog.Capsule),
		Contacts: make(map[string]catalog.CollectorContact),
		Promos:   make(map[string]catalog.PromoCode),
		Tags:     make(map[string]int64),
	}

	orders, err := s.ListOrders(ctx, 0)
	if err != nil {
		return store.State{}, err
	}
	for _, o := range orders {
		state.Orders[o.ID] = o
	}
	capsules, err := s.ListCapsules(ctx)
	if err != nil {
		return store.State{}, err
	}
	for _, c := range capsules {
		state.Capsules[c.ID] = c
	}
	contacts, err := s.ListContacts(ctx)
	if err != nil {
		return store.State{}, err
	}
	for _, c := range contacts {
		state.Contacts[c.ID] = c
	}
	promos, err := s.ListPromos(ctx)
	if err != nil {
		return store.State{}, err
	}
	for _, p := range promos {
		state.Promos[p.Code] = p
	}
	tags, err := s.ListTags(ctx)
	if err != nil {
		return store.State{}, err
	}
	for _, t := range tags {
		state.Tags[t.Name] = t.Count
	}
	return state, nil
}

// Reset deletes every row.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	defer tx.Rollback()
	if err := clearTables(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadState replaces the database contents with a JSON snapshot.
func (s *Store) LoadState(ctx context.Context, data []byte) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	var state store.State
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	defer tx.Rollback()
	if err := clearTables(ctx, tx); err != nil {
		return err
	}

	for id, c := range state.Capsules {
		c.ID = id
		if err := insertCapsule(ctx, tx, c); err != nil {
			return fmt.Errorf("load capsule %s: %w", id, err)
		}
	}
	for id, o := range state.Orders {
		o.ID = id
		if err := insertOrder(ctx, tx, o); err != nil {
			return fmt.Errorf("load order %s: %w", id, err)
		}
	}
	for id, c := range state.Contacts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collector_contacts (id, email, name, order_id, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, catalog.NormalizeEmail(c.Email), c.Name, c.OrderID, toMillis(c.CreatedAt),
		); err != nil {
			return fmt.Errorf("load contact %s: %w", id, err)
		}
	}
	for _, p := range state.Promos {
		if err := upsertPromo(ctx, tx, p.Normalize(), p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("load promo %s: %w", p.Code, err)
		}
	}
	for name, count := range state.Tags {
		name = catalog.NormalizeTag(name)
		if name == "" || count <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (name, count) VALUES (?, ?)
			 ON CONFLICT(name) DO UPDATE SET count = count + excluded.count`,
			name, count,
		); err != nil {
			return fmt.Errorf("load tag %s: %w", name, err)
		}
	}
	return tx.Commit()
}

func clearTables(ctx context.Context, tx *sql.Tx) error {
	for _, table := range stateTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

var _ store.StateStore = (*Store)(nil)
