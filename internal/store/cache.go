// Package store provides a SQLite-backed cache for decoded model artifacts.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Cache provides SQLite-backed artifact caching.
type Cache struct {
	db *sql.DB
}

// ArtifactRecord is one cached, already-decoded artifact.
type ArtifactRecord struct {
	Location  string
	Area      string
	Format    string
	SizeBytes int64
	MtimeNs   int64
	ETag      string
	Blob      []byte
	CachedAt  time.Time
}

// Matches reports whether the record was built from an artifact with this version.
func (r ArtifactRecord) Matches(sizeBytes, mtimeNs int64, etag string) bool {
	return r.SizeBytes == sizeBytes && r.MtimeNs == mtimeNs && r.ETag == etag
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GetArtifact returns the cached record for location, if any.
func (c *Cache) GetArtifact(location string) (ArtifactRecord, bool, error) {
	var rec ArtifactRecord
	var cachedAt string
	err := c.db.QueryRow(`SELECT
		location, area, format, size_bytes, mtime_ns, etag, blob, cached_at
		FROM artifacts WHERE location = ?`, location,
	).Scan(&rec.Location, &rec.Area, &rec.Format, &rec.SizeBytes, &rec.MtimeNs, &rec.ETag, &rec.Blob, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ArtifactRecord{}, false, nil
	}
	if err != nil {
		return ArtifactRecord{}, false, err
	}
	rec.CachedAt, _ = time.Parse(time.RFC3339, cachedAt)
	return rec, true, nil
}

// SaveArtifact stores or replaces the record for rec.Location.
func (c *Cache) SaveArtifact(rec ArtifactRecord) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := c.db.Exec(`INSERT OR REPLACE INTO artifacts
		(location, area, format, size_bytes, mtime_ns, etag, blob, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Location, rec.Area, rec.Format, rec.SizeBytes, rec.MtimeNs, rec.ETag, rec.Blob, now,
	)
	return err
}

// DeleteArtifact removes the record for location.
func (c *Cache) DeleteArtifact(location string) error {
	_, err := c.db.Exec("DELETE FROM artifacts WHERE location = ?", location)
	return err
}

// ListArtifacts returns every cached record without its blob.
func (c *Cache) ListArtifacts() ([]ArtifactRecord, error) {
	rows, err := c.db.Query(`SELECT
		location, area, format, size_bytes, mtime_ns, etag, cached_at
		FROM artifacts ORDER BY area, location`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ArtifactRecord
	for rows.Next() {
		var rec ArtifactRecord
		var cachedAt string
		if err := rows.Scan(&rec.Location, &rec.Area, &rec.Format, &rec.SizeBytes, &rec.MtimeNs, &rec.ETag, &cachedAt); err != nil {
			return nil, err
		}
		rec.CachedAt, _ = time.Parse(time.RFC3339, cachedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Clear drops every cached artifact.
func (c *Cache) Clear() error {
	_, err := c.db.Exec("DELETE FROM artifacts")
	return err
}
