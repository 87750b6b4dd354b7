package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
    profile     TEXT NOT NULL,
    collection  TEXT NOT NULL,
    body        TEXT NOT NULL,
    updated_at  TEXT NOT NULL,
    PRIMARY KEY (profile, collection)
);

CREATE INDEX IF NOT EXISTS idx_records_updated ON records(updated_at);
`
