// Package trace journals native calls to SQLite.
package trace

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/cellbridge/native"
	"github.com/chazu/cellbridge/vm"
)

var log = commonlog.GetLogger("cellbridge.trace")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Store is a native.Tracer writing every call to a SQLite database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating trace directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		args BLOB,
		result INTEGER NOT NULL,
		hooked INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// TraceCall implements native.Tracer. Write failures are logged.
func (s *Store) TraceCall(rec native.CallRecord) {
	if err := s.Record(rec); err != nil {
		log.Warningf("recording call to %s: %s", rec.Name, err)
	}
}

// Record writes one call.
func (s *Store) Record(rec native.CallRecord) error {
	args, err := cborEncMode.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("encoding arguments: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		"INSERT INTO calls (name, args, result, hooked, started_at, duration_ns) VALUES (?, ?, ?, ?, ?, ?)",
		rec.Name, args, int64(rec.Result), rec.Hooked, rec.Start.UnixNano(), int64(rec.Duration),
	)
	if err != nil {
		return fmt.Errorf("saving call: %w", err)
	}
	return nil
}

// Recent returns up to limit calls, newest first. An empty name matches
// every native.
func (s *Store) Recent(name string, limit int) ([]native.CallRecord, error) {
	query := "SELECT name, args, result, hooked, started_at, duration_ns FROM calls"
	var params []any
	if name != "" {
		query += " WHERE name = ?"
		params = append(params, name)
	}
	query += " ORDER BY id DESC LIMIT ?"
	params = append(params, limit)

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying calls: %w", err)
	}
	defer rows.Close()

	var out []native.CallRecord
	for rows.Next() {
		var (
			rec      native.CallRecord
			args     []byte
			result   int64
			started  int64
			duration int64
		)
		if err := rows.Scan(&rec.Name, &args, &result, &rec.Hooked, &started, &duration); err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		if len(args) > 0 {
			if err := cbor.Unmarshal(args, &rec.Args); err != nil {
				return nil, fmt.Errorf("decoding arguments: %w", err)
			}
		}
		rec.Result = vm.Cell(result)
		rec.Start = time.Unix(0, started)
		rec.Duration = time.Duration(duration)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns how many calls of name (or of every native when empty) are
// recorded.
func (s *Store) Count(name string) (int, error) {
	var n int
	var err error
	if name == "" {
		err = s.db.QueryRow("SELECT COUNT(*) FROM calls").Scan(&n)
	} else {
		err = s.db.QueryRow("SELECT COUNT(*) FROM calls WHERE name = ?", name).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting calls: %w", err)
	}
	return n, nil
}
