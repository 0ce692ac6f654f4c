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

	logx "github.com/Leryan/flobot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	path = strings.TrimPrefix(path, "sqlite://")
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
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
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Info("storage opened", logx.String("path", path))
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

func (s *sqliteStore) ListTriggers(ctx context.Context, teamID string) ([]Trigger, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, word, COALESCE(text, ''), COALESCE(emoji, '')
		 FROM triggers WHERE team_id = ? ORDER BY word`,
		teamID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var t Trigger
		if err := rows.Scan(&t.ID, &t.TeamID, &t.Word, &t.Text, &t.Emoji); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AddTextTrigger(ctx context.Context, teamID, word, text string) error {
	return s.upsertTrigger(ctx, teamID, word, nullStr(text), nil)
}

func (s *sqliteStore) AddReactionTrigger(ctx context.Context, teamID, word, emoji string) error {
	return s.upsertTrigger(ctx, teamID, word, nil, nullStr(emoji))
}

func (s *sqliteStore) upsertTrigger(ctx context.Context, teamID, word string, text, emoji any) error {
	word = normWord(word)
	if word == "" {
		return errors.New("empty trigger word")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO triggers(team_id, word, text, emoji) VALUES(?,?,?,?)
		 ON CONFLICT(team_id, word) DO UPDATE SET text=excluded.text, emoji=excluded.emoji`,
		teamID, word, text, emoji,
	)
	return err
}

func (s *sqliteStore) DelTrigger(ctx context.Context, teamID, word string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM triggers WHERE team_id = ? AND word = ?`, teamID, normWord(word))
	return affected(res, err)
}

func (s *sqliteStore) PutSnapshot(ctx context.Context, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshot(name, data, updated_at) VALUES(?,?,?)
		 ON CONFLICT(name) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		name, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) GetSnapshot(ctx context.Context, name string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshot WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func (s *sqliteStore) ListEdits(ctx context.Context, teamID string) ([]Edit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, word, replace_with FROM edits WHERE team_id = ? ORDER BY word`,
		teamID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Edit
	for rows.Next() {
		var e Edit
		if err := rows.Scan(&e.ID, &e.TeamID, &e.Word, &e.Replace); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) FindEdit(ctx context.Context, teamID, word string) (Edit, error) {
	var e Edit
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, word, replace_with FROM edits WHERE team_id = ? AND word = ?`,
		teamID, normWord(word),
	).Scan(&e.ID, &e.TeamID, &e.Word, &e.Replace)
	if errors.Is(err, sql.ErrNoRows) {
		return Edit{}, ErrNotFound
	}
	return e, err
}

func (s *sqliteStore) AddEdit(ctx context.Context, teamID, word, replace string) error {
	word = normWord(word)
	if word == "" || strings.TrimSpace(replace) == "" {
		return errors.New("empty edit")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO edits(team_id, word, replace_with) VALUES(?,?,?)
		 ON CONFLICT(team_id, word) DO UPDATE SET replace_with=excluded.replace_with`,
		teamID, word, replace,
	)
	return err
}

func (s *sqliteStore) DelEdit(ctx context.Context, teamID, word string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM edits WHERE team_id = ? AND word = ?`, teamID, normWord(word))
	return affected(res, err)
}

func (s *sqliteStore) ListJokes(ctx context.Context, teamID string) ([]Joke, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, team_id, text FROM jokes WHERE team_id = ? ORDER BY id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Joke
	for rows.Next() {
		var j Joke
		if err := rows.Scan(&j.ID, &j.TeamID, &j.Text); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AddJoke(ctx context.Context, teamID, text string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, errors.New("empty joke")
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO jokes(team_id, text) VALUES(?,?)`, teamID, text)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) DelJoke(ctx context.Context, teamID string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jokes WHERE team_id = ? AND id = ?`, teamID, id)
	return affected(res, err)
}

// affected turns a DELETE that matched nothing into ErrNotFound.
func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
