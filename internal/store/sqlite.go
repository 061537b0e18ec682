// Package store persists the last good weather entry in a local preference
// store: a single-slot, last-writer-wins cache that is only ever overwritten,
// never deleted.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/akarpov/skycast/internal/weather"
)

// ErrNoEntry is returned when nothing was ever stored or the stored entry
// cannot be decoded. Corruption degrades to "absent", not a failure.
var ErrNoEntry = errors.New("no cached weather entry")

// Cache is the single-slot store contract. Put replaces any previous entry
// atomically with respect to a concurrent Get from the same process.
type Cache interface {
	Put(entry weather.CachedEntry) error
	Get() (weather.CachedEntry, error)
}

// Preference keys, kept as three string-valued rows.
const (
	keySnapshot  = "weather_response_data"
	keyLatitude  = "latitude"
	keyLongitude = "longitude"
)

// SQLiteCache implements Cache on a local SQLite database (pure Go driver
// modernc.org/sqlite).
type SQLiteCache struct {
	db *sql.DB
}

var _ Cache = (*SQLiteCache)(nil)

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL keeps readers unblocked during the small preference writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `CREATE TABLE IF NOT EXISTS preferences (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteCache{db: db}, nil
}

// Put stores the entry, replacing any previous value. The three rows are
// written in one transaction so a reader never observes a half-written entry.
func (s *SQLiteCache) Put(entry weather.CachedEntry) error {
	blob, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO preferences(key, value) VALUES(?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	rows := [][2]string{
		{keySnapshot, string(blob)},
		{keyLatitude, strconv.FormatFloat(entry.Coordinates.Latitude, 'f', -1, 64)},
		{keyLongitude, strconv.FormatFloat(entry.Coordinates.Longitude, 'f', -1, 64)},
	}
	for _, kv := range rows {
		if _, err := stmt.Exec(kv[0], kv[1]); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Get returns the most recently stored entry. Any missing or undecodable row
// yields ErrNoEntry.
func (s *SQLiteCache) Get() (weather.CachedEntry, error) {
	values := make(map[string]string, 3)

	rows, err := s.db.Query(`SELECT key, value FROM preferences`)
	if err != nil {
		return weather.CachedEntry{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return weather.CachedEntry{}, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return weather.CachedEntry{}, err
	}

	blob, ok := values[keySnapshot]
	if !ok || blob == "" {
		return weather.CachedEntry{}, ErrNoEntry
	}

	var entry weather.CachedEntry
	if err := json.Unmarshal([]byte(blob), &entry.Snapshot); err != nil {
		return weather.CachedEntry{}, ErrNoEntry
	}

	lat, latErr := strconv.ParseFloat(values[keyLatitude], 64)
	lon, lonErr := strconv.ParseFloat(values[keyLongitude], 64)
	if latErr != nil || lonErr != nil {
		return weather.CachedEntry{}, ErrNoEntry
	}
	entry.Coordinates = weather.Coordinates{Latitude: lat, Longitude: lon}

	return entry, nil
}

// Close releases the underlying database handle.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}
