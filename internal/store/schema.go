package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS artifacts (
    location             TEXT PRIMARY KEY,
    area                 TEXT NOT NULL,
    format               TEXT NOT NULL,
    size_bytes           INTEGER NOT NULL,
    mtime_ns             INTEGER NOT NULL,
    etag                 TEXT NOT NULL DEFAULT '',
    blob                 BLOB NOT NULL,
    cached_at            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_area ON artifacts(area);
`
