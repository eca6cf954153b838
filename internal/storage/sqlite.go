package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"quiethours/internal/block"
	logx "quiethours/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers. A single connection
	// also serializes the overlap-check + insert transactions, which is the
	// store-level backstop for per-owner write atomicity.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const blockCols = `id, owner_id, title, description, subject, priority, start_ms, end_ms, reminder_sent, created_ms, updated_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(r rowScanner) (block.Block, error) {
	var (
		b                                    block.Block
		subject, priority                    string
		startMS, endMS, createdMS, updatedMS int64
		sent                                 int
	)
	err := r.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Description, &subject, &priority,
		&startMS, &endMS, &sent, &createdMS, &updatedMS)
	if err != nil {
		return block.Block{}, err
	}
	b.Subject = block.Subject(subject)
	b.Priority = block.Priority(priority)
	b.StartTime = time.UnixMilli(startMS).UTC()
	b.EndTime = time.UnixMilli(endMS).UTC()
	b.ReminderSent = sent != 0
	b.CreatedAt = time.UnixMilli(createdMS).UTC()
	b.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	return b, nil
}

// overlapRowTx runs the conflict query inside tx. excludeID may be empty.
func overlapRowTx(ctx context.Context, tx *sql.Tx, ownerID string, startMS, endMS int64, excludeID string) (*block.Block, error) {
	q := `SELECT ` + blockCols + ` FROM blocks
	      WHERE owner_id = ? AND start_ms < ? AND end_ms > ?`
	args := []any{ownerID, endMS, startMS}
	if excludeID != "" {
		q += ` AND id != ?`
		args = append(args, excludeID)
	}
	q += ` ORDER BY start_ms LIMIT 1`

	b, err := scanBlock(tx.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *sqliteStore) CreateBlock(ctx context.Context, b block.Block) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "create", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	startMS := b.StartTime.UnixMilli()
	endMS := b.EndTime.UnixMilli()

	// Re-check overlap under the write transaction. The lifecycle manager
	// already checked, but a concurrent create for the same owner may have
	// landed between its check and this insert.
	if hit, err := overlapRowTx(ctx, tx, b.OwnerID, startMS, endMS, ""); err != nil {
		return &StoreError{Op: "create.overlap", Err: err}
	} else if hit != nil {
		return &block.ConflictError{With: *hit}
	}

	now := time.Now().UnixMilli()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO blocks(`+blockCols+`) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.OwnerID, b.Title, b.Description, string(b.Subject), string(b.Priority),
		startMS, endMS, boolInt(b.ReminderSent), now, now,
	)
	if err != nil {
		return &StoreError{Op: "create", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "create.commit", Err: err}
	}
	return nil
}

func (s *sqliteStore) UpdateBlock(ctx context.Context, b block.Block) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "update", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	startMS := b.StartTime.UnixMilli()
	endMS := b.EndTime.UnixMilli()

	if hit, err := overlapRowTx(ctx, tx, b.OwnerID, startMS, endMS, b.ID); err != nil {
		return &StoreError{Op: "update.overlap", Err: err}
	} else if hit != nil {
		return &block.ConflictError{With: *hit}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE blocks SET title=?, description=?, subject=?, priority=?,
		        start_ms=?, end_ms=?, updated_ms=?
		 WHERE id = ? AND owner_id = ?`,
		b.Title, b.Description, string(b.Subject), string(b.Priority),
		startMS, endMS, time.Now().UnixMilli(),
		b.ID, b.OwnerID,
	)
	if err != nil {
		return &StoreError{Op: "update", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: "update", Err: err}
	}
	if n == 0 {
		return &block.NotFoundError{ID: b.ID}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "update.commit", Err: err}
	}
	return nil
}

func (s *sqliteStore) DeleteBlock(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM blocks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	if n == 0 {
		return &block.NotFoundError{ID: id}
	}
	return nil
}

func (s *sqliteStore) GetBlock(ctx context.Context, id, ownerID string) (block.Block, error) {
	b, err := scanBlock(s.db.QueryRowContext(ctx,
		`SELECT `+blockCols+` FROM blocks WHERE id = ? AND owner_id = ?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return block.Block{}, &block.NotFoundError{ID: id}
	}
	if err != nil {
		return block.Block{}, &StoreError{Op: "get", Err: err}
	}
	return b, nil
}

func (s *sqliteStore) ListBlocks(ctx context.Context, ownerID string, q ListQuery) ([]block.Block, int, error) {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	nowMS := now.UnixMilli()

	where := `owner_id = ?`
	args := []any{ownerID}
	switch q.Filter {
	case FilterUpcoming:
		where += ` AND start_ms > ?`
		args = append(args, nowMS)
	case FilterPast:
		where += ` AND end_ms < ?`
		args = append(args, nowMS)
	case FilterActive:
		where += ` AND start_ms <= ? AND end_ms >= ?`
		args = append(args, nowMS, nowMS)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocks WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, &StoreError{Op: "list.count", Err: err}
	}

	order := `ASC`
	if q.Desc {
		order = `DESC`
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+blockCols+` FROM blocks WHERE `+where+
			` ORDER BY start_ms `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []block.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, 0, &StoreError{Op: "list.scan", Err: err}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &StoreError{Op: "list", Err: err}
	}
	return out, total, nil
}

func (s *sqliteStore) FindOverlapping(ctx context.Context, ownerID string, start, end time.Time, excludeID string) (*block.Block, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StoreError{Op: "overlap", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	hit, err := overlapRowTx(ctx, tx, ownerID, start.UnixMilli(), end.UnixMilli(), excludeID)
	if err != nil {
		return nil, &StoreError{Op: "overlap", Err: err}
	}
	return hit, nil
}

func (s *sqliteStore) DueBlocks(ctx context.Context, from, to time.Time) ([]block.Block, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+blockCols+` FROM blocks
		 WHERE start_ms >= ? AND start_ms < ? AND reminder_sent = 0
		 ORDER BY start_ms ASC`,
		from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, &StoreError{Op: "due", Err: err}
	}
	defer rows.Close()

	var out []block.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, &StoreError{Op: "due.scan", Err: err}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "due", Err: err}
	}
	return out, nil
}

// MarkReminderSent is a single conditional write: the WHERE clause carries the
// check, so two racing dispatch runs cannot both observe "applied".
func (s *sqliteStore) MarkReminderSent(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE blocks SET reminder_sent = 1, updated_ms = ?
		 WHERE id = ? AND reminder_sent = 0`,
		time.Now().UnixMilli(), id)
	if err != nil {
		return false, &StoreError{Op: "mark", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &StoreError{Op: "mark", Err: err}
	}
	return n > 0, nil
}

func (s *sqliteStore) UpsertOwner(ctx context.Context, ownerID, email string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO owners(id, email, updated_ms) VALUES(?,?,?)
		 ON CONFLICT(id) DO UPDATE SET email=excluded.email, updated_ms=excluded.updated_ms`,
		ownerID, email, time.Now().UnixMilli())
	if err != nil {
		return &StoreError{Op: "owner.upsert", Err: err}
	}
	return nil
}

func (s *sqliteStore) ContactAddress(ctx context.Context, ownerID string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx,
		`SELECT email FROM owners WHERE id = ?`, ownerID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoContact
	}
	if err != nil {
		return "", &StoreError{Op: "owner.get", Err: err}
	}
	if strings.TrimSpace(email) == "" {
		return "", ErrNoContact
	}
	return email, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
