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

	"zapbot/pkg/logx"
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
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
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

func (s *sqliteStore) GetRecipient(ctx context.Context, chatID int64) (Recipient, bool, error) {
	if s == nil || s.db == nil {
		return Recipient{}, false, ErrClosed
	}
	var (
		r        Recipient
		username sql.NullString
		groupID  sql.NullString
		subgroup sql.NullString
		verified int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, username, group_id, subgroup, verified FROM users WHERE chat_id = ?`,
		chatID,
	).Scan(&r.ChatID, &username, &groupID, &subgroup, &verified)
	if errors.Is(err, sql.ErrNoRows) {
		return Recipient{}, false, nil
	}
	if err != nil {
		return Recipient{}, false, err
	}
	r.DisplayName = username.String
	r.GroupID = groupID.String
	r.SubgroupKey = subgroup.String
	r.Verified = verified != 0
	return r, true, nil
}

func (s *sqliteStore) SaveRecipient(ctx context.Context, r Recipient) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	verified := 0
	if r.Verified {
		verified = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users(chat_id, username, group_id, subgroup, verified)
		 VALUES(?,?,?,?,?)`,
		r.ChatID, nullStr(r.DisplayName), nullStr(r.GroupID), nullStr(r.SubgroupKey), verified,
	)
	return err
}

func (s *sqliteStore) RecipientsBySubgroup(ctx context.Context, subgroupKey string) ([]int64, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id FROM users WHERE subgroup = ? AND verified = 1`, subgroupKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *sqliteStore) IsNotified(ctx context.Context, key string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrClosed
	}
	if key == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM notified WHERE id = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) MarkNotified(ctx context.Context, key string, at time.Time) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if key == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	// Keep the first timestamp: marking is monotonic, re-marks are no-ops.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notified(id, ts) VALUES(?,?) ON CONFLICT(id) DO NOTHING`,
		key, at.Unix(),
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
