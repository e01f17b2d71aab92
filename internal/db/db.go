package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"mkwab/internal/logic"
	"mkwab/internal/roster"
)

//go:embed schema.sql
var schemaFS embed.FS

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when a stored result does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	DB *sqlx.DB
}

func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA journal_mode=WAL;")
	_, _ = db.Exec("PRAGMA synchronous=NORMAL;")
	// a single connection serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	st := &Store{DB: db}
	if err := st.migrate(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) migrate() error {
	ddl, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(string(ddl))
	return err
}

func (s *Store) EnsureSettings(defaultReset string) error {
	_, err := s.DB.Exec("INSERT INTO settings (id, daily_reset) VALUES (1, ?) ON CONFLICT(id) DO NOTHING", defaultReset)
	return err
}

func (s *Store) GetDailyReset() (string, error) {
	var t string
	err := s.DB.Get(&t, "SELECT daily_reset FROM settings WHERE id=1")
	return t, err
}

func (s *Store) SetDailyReset(t string) error {
	_, err := s.DB.Exec("UPDATE settings SET daily_reset=? WHERE id=1", t)
	return err
}

func (s *Store) UpsertChat(chatID int64, title string) error {
	_, err := s.DB.Exec("INSERT INTO chats (chat_id, title) VALUES (?, ?) ON CONFLICT(chat_id) DO UPDATE SET title=excluded.title", chatID, title)
	return err
}

func (s *Store) ChatIDs() ([]int64, error) {
	var ids []int64
	err := s.DB.Select(&ids, "SELECT chat_id FROM chats ORDER BY chat_id")
	return ids, err
}

func ensureChat(tx *sqlx.Tx, chatID int64) error {
	_, err := tx.Exec("INSERT OR IGNORE INTO chats (chat_id) VALUES (?)", chatID)
	return err
}

type slotRow struct {
	Index int `db:"slot"`
	roster.Slot
}

// LoadRoster returns the chat roster; a chat without stored slots gets a blank one.
func (s *Store) LoadRoster(chatID int64) (*roster.Roster, error) {
	var rows []slotRow
	if err := s.DB.Select(&rows, "SELECT slot, name, rating, active FROM slots WHERE chat_id=? ORDER BY slot", chatID); err != nil {
		return nil, err
	}
	r := roster.New()
	for _, row := range rows {
		if row.Index >= 0 && row.Index < len(r.Slots) {
			r.Slots[row.Index] = row.Slot
		}
	}
	return r, nil
}

func (s *Store) SaveRoster(ctx context.Context, chatID int64, r *roster.Roster) error {
	return s.retry(ctx, func() error {
		return s.WithTx(ctx, func(tx *sqlx.Tx) error {
			return saveSlots(tx, chatID, r)
		})
	})
}

// SaveRosterClearResults stores the roster and drops the chat's results in
// one transaction, so a failed write leaves both untouched.
func (s *Store) SaveRosterClearResults(ctx context.Context, chatID int64, r *roster.Roster) error {
	return s.retry(ctx, func() error {
		return s.WithTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.Exec("DELETE FROM results WHERE chat_id=?", chatID); err != nil {
				return err
			}
			return saveSlots(tx, chatID, r)
		})
	})
}

func saveSlots(tx *sqlx.Tx, chatID int64, r *roster.Roster) error {
	if err := ensureChat(tx, chatID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM slots WHERE chat_id=?", chatID); err != nil {
		return err
	}
	for i, sl := range r.Slots {
		if _, err := tx.Exec("INSERT INTO slots (chat_id, slot, name, rating, active) VALUES (?, ?, ?, ?, ?)",
			chatID, i, sl.Name, sl.Rating, sl.Active); err != nil {
			return fmt.Errorf("insert slot %d: %w", i, err)
		}
	}
	return nil
}

// ResetParticipation clears every active flag in every chat.
func (s *Store) ResetParticipation(ctx context.Context) (int64, error) {
	var n int64
	err := s.retry(ctx, func() error {
		res, err := s.DB.ExecContext(ctx, "UPDATE slots SET active=0 WHERE active<>0")
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

// TeamCounts returns the chat's selected team counts, [2] when never set.
func (s *Store) TeamCounts(chatID int64) ([]int, error) {
	var raw string
	err := s.DB.Get(&raw, "SELECT team_counts FROM chat_settings WHERE chat_id=?", chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return []int{2}, nil
	}
	if err != nil {
		return nil, err
	}
	var ks []int
	for _, f := range strings.Fields(raw) {
		k, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("corrupt team_counts %q for chat %d: %w", raw, chatID, err)
		}
		ks = append(ks, k)
	}
	if len(ks) == 0 {
		ks = []int{2}
	}
	return ks, nil
}

func (s *Store) SetTeamCounts(ctx context.Context, chatID int64, ks []int) error {
	parts := make([]string, len(ks))
	for i, k := range ks {
		parts[i] = strconv.Itoa(k)
	}
	return s.upsertChatSetting(ctx, chatID, "team_counts", strings.Join(parts, " "))
}

// Multiplier returns the chat's stored multiplier text, "" when unset.
func (s *Store) Multiplier(chatID int64) (string, error) {
	var m string
	err := s.DB.Get(&m, "SELECT multiplier FROM chat_settings WHERE chat_id=?", chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return m, err
}

func (s *Store) SetMultiplier(ctx context.Context, chatID int64, m string) error {
	return s.upsertChatSetting(ctx, chatID, "multiplier", m)
}

func (s *Store) upsertChatSetting(ctx context.Context, chatID int64, column, value string) error {
	q := fmt.Sprintf("INSERT INTO chat_settings (chat_id, %[1]s) VALUES (?, ?) ON CONFLICT(chat_id) DO UPDATE SET %[1]s=excluded.%[1]s", column)
	return s.retry(ctx, func() error {
		return s.WithTx(ctx, func(tx *sqlx.Tx) error {
			if err := ensureChat(tx, chatID); err != nil {
				return err
			}
			_, err := tx.Exec(q, chatID, value)
			return err
		})
	})
}

// SaveResults replaces every stored result of the chat and returns the
// chat's new result sequence number. Sequence numbers start at 1 and never
// repeat for a chat.
func (s *Store) SaveResults(ctx context.Context, chatID int64, results map[int]logic.Result, now time.Time) (int64, error) {
	var seq int64
	err := s.retry(ctx, func() error {
		return s.WithTx(ctx, func(tx *sqlx.Tx) error {
			if err := ensureChat(tx, chatID); err != nil {
				return err
			}
			if err := tx.Get(&seq, "INSERT INTO result_seq (chat_id, seq) VALUES (?, 1) ON CONFLICT(chat_id) DO UPDATE SET seq=seq+1 RETURNING seq", chatID); err != nil {
				return fmt.Errorf("next result seq: %w", err)
			}
			if _, err := tx.Exec("DELETE FROM results WHERE chat_id=?", chatID); err != nil {
				return err
			}
			for k, res := range results {
				if !res.Computable() {
					return fmt.Errorf("result k=%d has no assignment", k)
				}
				payload, err := json.MarshalToString(res)
				if err != nil {
					return fmt.Errorf("encode result k=%d: %w", k, err)
				}
				if _, err := tx.Exec("INSERT INTO results (chat_id, teams, payload, spread, created_at) VALUES (?, ?, ?, ?, ?)",
					chatID, k, payload, *res.Spread, now.UnixMilli()); err != nil {
					return err
				}
			}
			return nil
		})
	})
	return seq, err
}

// StoredResult is a result together with the assignment it belongs to.
type StoredResult struct {
	logic.Result
	Seq       int64
	CreatedAt time.Time
}

// LoadResult returns a stored result with its sequence number and save time.
func (s *Store) LoadResult(chatID int64, k int) (StoredResult, error) {
	var row struct {
		Payload   string `db:"payload"`
		CreatedAt int64  `db:"created_at"`
		Seq       int64  `db:"seq"`
	}
	err := s.DB.Get(&row, `SELECT r.payload, r.created_at, q.seq
		FROM results r JOIN result_seq q ON q.chat_id = r.chat_id
		WHERE r.chat_id=? AND r.teams=?`, chatID, k)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredResult{}, ErrNotFound
	}
	if err != nil {
		return StoredResult{}, err
	}
	var res logic.Result
	if err := json.UnmarshalFromString(row.Payload, &res); err != nil {
		return StoredResult{}, fmt.Errorf("decode result chat=%d k=%d: %w", chatID, k, err)
	}
	return StoredResult{Result: res, Seq: row.Seq, CreatedAt: time.UnixMilli(row.CreatedAt).UTC()}, nil
}

// ExpireResults deletes results created before the cutoff and returns the
// affected chats.
func (s *Store) ExpireResults(ctx context.Context, before time.Time) ([]int64, error) {
	var ids []int64
	err := s.retry(ctx, func() error {
		return s.WithTx(ctx, func(tx *sqlx.Tx) error {
			ids = ids[:0]
			if err := tx.Select(&ids, "SELECT DISTINCT chat_id FROM results WHERE created_at < ? ORDER BY chat_id", before.UnixMilli()); err != nil {
				return err
			}
			_, err := tx.Exec("DELETE FROM results WHERE created_at < ?", before.UnixMilli())
			return err
		})
	})
	return ids, err
}

func (s *Store) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// retry reruns fn while SQLite reports the database as busy or locked.
func (s *Store) retry(ctx context.Context, fn func() error) error {
	const maxAttempts = 5
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil || !isLockedError(err) {
			return err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*100) * time.Millisecond):
		}
	}
	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func isLockedError(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database is busy")
}
