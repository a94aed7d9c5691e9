package upload

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/claude/sleepbuddy/internal/models"
	_ "modernc.org/sqlite"
)

// StateDB tracks which datasets have been successfully uploaded to avoid re-sending.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS uploaded_datasets (
		hash        TEXT PRIMARY KEY,
		days        INTEGER NOT NULL,
		inserted    INTEGER NOT NULL,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsUploaded checks if a dataset with this hash has already been uploaded.
func (s *StateDB) IsUploaded(hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM uploaded_datasets WHERE hash = ?`,
		hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking upload state: %w", err)
	}
	return count > 0, nil
}

// MarkUploaded records that a dataset was successfully uploaded.
func (s *StateDB) MarkUploaded(hash string, days int, inserted int64) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO uploaded_datasets (hash, days, inserted) VALUES (?, ?, ?)`,
		hash, days, inserted,
	)
	if err != nil {
		return fmt.Errorf("marking upload: %w", err)
	}
	return nil
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashDataset computes the SHA-256 hash of a dataset's JSON encoding.
func HashDataset(ds models.FitDataset) (string, error) {
	data, err := json.Marshal(ds)
	if err != nil {
		return "", fmt.Errorf("marshaling dataset: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
