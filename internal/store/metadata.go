package store

import (
	"context"
	"database/sql"
	"time"
)

// SetImportedFileHash records the content hash of an imported question file.
func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO imported_files (path, sha256, imported_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET sha256 = excluded.sha256, imported_at = excluded.imported_at`,
		path, hash, time.Now().UTC(),
	)
	return err
}

// GetImportedFileHash returns the stored hash for path.
// Returns empty string and nil error if the file was never imported.
func (s *Store) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.queryRow(ctx, s.db, `SELECT sha256 FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}
