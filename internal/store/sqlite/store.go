// Package sqlite provides a SQLite-backed implementation of the storefront
// stores.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/store"
	"github.com/framevist/framevist/internal/store/sqlite/migrations"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists storefront state in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// CreateOrder inserts an order under a fresh UUID.
func (s *Store) CreateOrder(ctx context.Context, order catalog.Order) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	order.ID = uuid.NewString()
	if err := insertOrder(ctx, s.sqlDB, order); err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrAlreadyExists
		}
		return "", fmt.Errorf("create order: %w", err)
	}
	return order.ID, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertOrder(ctx context.Context, db execer, order catalog.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO orders (
		   id, customer_name, customer_email, items_json,
		   subtotal, taxes, discount, promo_code, total, status, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.CustomerName,
		order.CustomerEmail,
		string(items),
		order.Subtotal.String(),
		order.Taxes.String(),
		order.Discount.String(),
		order.PromoCode,
		order.Total.String(),
		order.Status,
		toMillis(order.CreatedAt),
	)
	return err
}

const orderColumns = `id, customer_name, customer_email, items_json,
        subtotal, taxes, discount, promo_code, total, status, created_at`

// GetOrder returns one order by id.
func (s *Store) GetOrder(ctx context.Context, id string) (catalog.Order, error) {
	if err := s.ready(ctx); err != nil {
		return catalog.Order{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, strings.TrimSpace(id))
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Order{}, store.ErrNotFound
		}
		return catalog.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// ListOrders returns up to limit orders, newest first.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]catalog.Order, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []catalog.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		out = append(out, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (catalog.Order, error) {
	var (
		order     catalog.Order
		items     string
		createdAt int64
	)
	if err := row.Scan(
		&order.ID,
		&order.CustomerName,
		&order.CustomerEmail,
		&items,
		&order.Subtotal,
		&order.Taxes,
		&order.Discount,
		&order.PromoCode,
		&order.Total,
		&order.Status,
		&createdAt,
	); err != nil {
		return catalog.Order{}, err
	}
	if err := json.Unmarshal([]byte(items), &order.Items); err != nil {
		return catalog.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	order.CreatedAt = fromMillis(createdAt)
	return order, nil
}

// ---------------------------------------------------------------------------
// Capsules
// ---------------------------------------------------------------------------

const capsuleColumns = `id, title, slug, description, price, image,
        gallery_json, variations_json, resolutions_json, tags_json,
        published, views, cart_adds, purchases, created_at, updated_at`

// GetCapsule returns one capsule.
func (s *Store) GetCapsule(ctx context.Context, id string) (catalog.Capsule, error) {
	if err := s.ready(ctx); err != nil {
		return catalog.Capsule{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+capsuleColumns+` FROM capsules WHERE id = ?`, strings.TrimSpace(id))
	c, err := scanCapsule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Capsule{}, store.ErrNotFound
		}
		return catalog.Capsule{}, fmt.Errorf("get capsule: %w", err)
	}
	return c, nil
}

// ListCapsules returns every capsule in creation order.
func (s *Store) ListCapsules(ctx context.Context) ([]catalog.Capsule, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+capsuleColumns+` FROM capsules ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list capsules: %w", err)
	}
	defer rows.Close()

	var out []catalog.Capsule
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, fmt.Errorf("list capsules: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list capsules: %w", err)
	}
	return out, nil
}

// CreateCapsule inserts a capsule, assigning a UUID when the id is empty.
func (s *Store) CreateCapsule(ctx context.Context, c catalog.Capsule) (catalog.Capsule, error) {
	if err := s.ready(ctx); err != nil {
		return catalog.Capsule{}, err
	}
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	c.Stats = catalog.Stats{}

	if err := insertCapsule(ctx, s.sqlDB, c); err != nil {
		if isUniqueViolation(err) {
			return catalog.Capsule{}, store.ErrAlreadyExists
		}
		return catalog.Capsule{}, fmt.Errorf("create capsule: %w", err)
	}
	return c, nil
}

// UpdateCapsule replaces the editable fields of a capsule.
func (s *Store) UpdateCapsule(ctx context.Context, c catalog.Capsule) (catalog.Capsule, error) {
	if err := s.ready(ctx); err != nil {
		return catalog.Capsule{}, err
	}
	enc, err := encodeCapsule(c)
	if err != nil {
		return catalog.Capsule{}, err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE capsules
		    SET title = ?, slug = ?, description = ?, price = ?, image = ?,
		        gallery_json = ?, variations_json = ?, resolutions_json = ?, tags_json = ?,
		        published = ?, updated_at = ?
		  WHERE id = ?`,
		c.Title, c.Slug, c.Description, c.Price.String(), c.Image,
		enc.gallery, enc.variations, enc.resolutions, enc.tags,
		boolToInt(c.Published), toMillis(s.now()), c.ID,
	)
	if err != nil {
		return catalog.Capsule{}, fmt.Errorf("update capsule: %w", err)
	}
	if err := expectRow(res); err != nil {
		return catalog.Capsule{}, err
	}
	return s.GetCapsule(ctx, c.ID)
}

// DeleteCapsule removes a capsule.
func (s *Store) DeleteCapsule(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM capsules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete capsule: %w", err)
	}
	return expectRow(res)
}

// SetPublished toggles storefront visibility.
func (s *Store) SetPublished(ctx context.Context, id string, published bool) error {
	return s.execCapsule(ctx, `UPDATE capsules SET published = ?, updated_at = ? WHERE id = ?`,
		boolToInt(published), toMillis(s.now()), id)
}

// IncrementPurchaseCount adds qty to the purchase counter.
func (s *Store) IncrementPurchaseCount(ctx context.Context, id string, qty int) error {
	return s.execCapsule(ctx, `UPDATE capsules SET purchases = purchases + ? WHERE id = ?`, qty, id)
}

// IncrementCartAddCount adds qty to the cart-add counter.
func (s *Store) IncrementCartAddCount(ctx context.Context, id string, qty int) error {
	return s.execCapsule(ctx, `UPDATE capsules SET cart_adds = cart_adds + ? WHERE id = ?`, qty, id)
}

// IncrementViewCount adds one view.
func (s *Store) IncrementViewCount(ctx context.Context, id string) error {
	return s.execCapsule(ctx, `UPDATE capsules SET views = views + 1 WHERE id = ?`, id)
}

func (s *Store) execCapsule(ctx context.Context, query string, args ...any) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update capsule: %w", err)
	}
	return expectRow(res)
}

func insertCapsule(ctx context.Context, db execer, c catalog.Capsule) error {
	enc, err := encodeCapsule(c)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO capsules (`+capsuleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Slug, c.Description, c.Price.String(), c.Image,
		enc.gallery, enc.variations, enc.resolutions, enc.tags,
		boolToInt(c.Published), c.Stats.Views, c.Stats.CartAdds, c.Stats.Purchases,
		toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
	)
	return err
}

type encodedCapsule struct {
	gallery, variations, resolutions, tags string
}

func encodeCapsule(c catalog.Capsule) (encodedCapsule, error) {
	var enc encodedCapsule
	fields := []struct {
		dst *string
		src any
		def string
	}{
		{&enc.gallery, c.Gallery, "[]"},
		{&enc.variations, c.Variations, "[]"},
		{&enc.resolutions, c.Resolutions, "{}"},
		{&enc.tags, c.Tags, "[]"},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.src)
		if err != nil {
			return encodedCapsule{}, fmt.Errorf("encode capsule: %w", err)
		}
		*f.dst = string(data)
		if *f.dst == "null" {
			*f.dst = f.def
		}
	}
	return enc, nil
}

func scanCapsule(row scanner) (catalog.Capsule, error) {
	var c catalog.Capsule
	var gallery, variations, resolutions, tags string
	var published int
	var createdAt, updatedAt int64
	if err := row.Scan(
		&c.ID, &c.Title, &c.Slug, &c.Description, &c.Price, &c.Image,
		&gallery, &variations, &resolutions, &tags,
		&published, &c.Stats.Views, &c.Stats.CartAdds, &c.Stats.Purchases,
		&createdAt, &updatedAt,
	); err != nil {
		return catalog.Capsule{}, err
	}
	for _, f := range []struct {
		src string
		dst any
	}{
		{gallery, &c.Gallery},
		{variations, &c.Variations},
		{resolutions, &c.Resolutions},
		{tags, &c.Tags},
	} {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return catalog.Capsule{}, fmt.Errorf("decode capsule %s: %w", c.ID, err)
		}
	}
	c.Published = published != 0
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

// RecordContact appends a collector contact.
func (s *Store) RecordContact(ctx context.Context, contact catalog.CollectorContact) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = s.now()
	}
	id := uuid.NewString()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO collector_contacts (id, email, name, order_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		id,
		catalog.NormalizeEmail(contact.Email),
		strings.TrimSpace(contact.Name),
		contact.OrderID,
		toMillis(contact.CreatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("record contact: %w", err)
	}
	return id, nil
}

// ListContacts returns all contacts oldest first.
func (s *Store) ListContacts(ctx context.Context) ([]catalog.CollectorContact, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, email, name, order_id, created_at FROM collector_contacts ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []catalog.CollectorContact
	for rows.Next() {
		var c catalog.CollectorContact
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.OrderID, &createdAt); err != nil {
			return nil, fmt.Errorf("list contacts: %w", err)
		}
		c.CreatedAt = fromMillis(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Promos
// ---------------------------------------------------------------------------

// ListPromos returns promo codes sorted by code.
func (s *Store) ListPromos(ctx context.Context) ([]catalog.PromoCode, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT code, label, type, value, minimum_subtotal, minimum_order_total,
		        max_discount, expires_at, created_at, updated_at
		   FROM promo_codes ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	defer rows.Close()

	var out []catalog.PromoCode
	for rows.Next() {
		var p catalog.PromoCode
		var minTotal, maxDisc decimal.NullDecimal
		var expiresAt sql.NullInt64
		var createdAt, updatedAt int64
		if err := rows.Scan(&p.Code, &p.Label, &p.Type, &p.Value, &p.MinimumSubtotal,
			&minTotal, &maxDisc, &expiresAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("list promos: %w", err)
		}
		if minTotal.Valid {
			v := minTotal.Decimal
			p.MinimumOrderTotal = &v
		}
		if maxDisc.Valid {
			v := maxDisc.Decimal
			p.MaxDiscount = &v
		}
		if expiresAt.Valid {
			t := fromMillis(expiresAt.Int64)
			p.ExpiresAt = &t
		}
		p.CreatedAt = fromMillis(createdAt)
		p.UpdatedAt = fromMillis(updatedAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	return out, nil
}

// UpsertPromo creates or replaces a promo keyed by its canonical code.
func (s *Store) UpsertPromo(ctx context.Context, promo catalog.PromoCode) (catalog.PromoCode, error) {
	if err := s.ready(ctx); err != nil {
		return catalog.PromoCode{}, err
	}
	promo = promo.Normalize()
	now := s.now()
	promo.UpdatedAt = now

	var createdAt int64
	query, args := promoUpsert(promo, now, now)
	if err := s.sqlDB.QueryRowContext(ctx, query+` RETURNING created_at`, args...).Scan(&createdAt); err != nil {
		return catalog.PromoCode{}, fmt.Errorf("upsert promo: %w", err)
	}
	promo.CreatedAt = fromMillis(createdAt)
	return promo, nil
}

func upsertPromo(ctx context.Context, db execer, promo catalog.PromoCode, createdAt, updatedAt time.Time) error {
	query, args := promoUpsert(promo, createdAt, updatedAt)
	_, err := db.ExecContext(ctx, query, args...)
	return err
}

func promoUpsert(promo catalog.PromoCode, createdAt, updatedAt time.Time) (string, []any) {
	var minTotal, maxDisc, expiresAt any
	if promo.MinimumOrderTotal != nil {
		minTotal = promo.MinimumOrderTotal.String()
	}
	if promo.MaxDiscount != nil {
		maxDisc = promo.MaxDiscount.String()
	}
	if promo.ExpiresAt != nil {
		expiresAt = toMillis(*promo.ExpiresAt)
	}
	query := `INSERT INTO promo_codes (
		   code, label, type, value, minimum_subtotal, minimum_order_total,
		   max_discount, expires_at, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
		   label = excluded.label,
		   type = excluded.type,
		   value = excluded.value,
		   minimum_subtotal = excluded.minimum_subtotal,
		   minimum_order_total = excluded.minimum_order_total,
		   max_discount = excluded.max_discount,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`
	args := []any{
		promo.Code, promo.Label, string(promo.Type), promo.Value.String(), promo.MinimumSubtotal.String(),
		minTotal, maxDisc, expiresAt, toMillis(createdAt), toMillis(updatedAt),
	}
	return query, args
}

// DeletePromo removes a promo by code.
func (s *Store) DeletePromo(ctx context.Context, code string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM promo_codes WHERE code = ?`, catalog.NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("delete promo: %w", err)
	}
	return expectRow(res)
}

// ---------------------------------------------------------------------------
// Tags
// ---------------------------------------------------------------------------

// AdjustTag changes a tag's usage count, dropping it at zero.
func (s *Store) AdjustTag(ctx context.Context, name string, delta int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	name = catalog.NormalizeTag(name)
	if name == "" {
		return nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("adjust tag: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tags (name, count) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET count = count + excluded.count`,
		name, delta,
	); err != nil {
		return fmt.Errorf("adjust tag: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE name = ? AND count <= 0`, name); err != nil {
		return fmt.Errorf("adjust tag: %w", err)
	}
	return tx.Commit()
}

// ListTags returns tags by descending count, then name.
func (s *Store) ListTags(ctx context.Context) ([]catalog.Tag, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name, count FROM tags ORDER BY count DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []catalog.Tag
	for rows.Next() {
		var t catalog.Tag
		if err := rows.Scan(&t.Name, &t.Count); err != nil {
			return nil, fmt.Errorf("list tags: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ store.Stores = (*Store)(nil)
