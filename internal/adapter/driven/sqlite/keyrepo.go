package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// encryptionKeyName is the row that holds the device-local vault key.
const encryptionKeyName = "byok-encryption-key"

// Compile-time interface satisfaction check.
var _ driven.KeyStore = (*KeyRepo)(nil)

// KeyRepo is the SQLite implementation of the KeyStore port interface.
type KeyRepo struct {
	db *DB
}

// NewKeyRepo creates a new KeyRepo backed by the given DB.
func NewKeyRepo(db *DB) *KeyRepo {
	return &KeyRepo{db: db}
}

// Load returns the stored key, or "" if none has been created.
func (r *KeyRepo) Load(ctx context.Context) (string, error) {
	return r.load(ctx, r.db.Reader)
}

// CreateIfAbsent inserts candidate unless a key row already exists and
// returns the stored value. The insert and read run on the single writer
// connection so concurrent callers observe the same winner.
func (r *KeyRepo) CreateIfAbsent(ctx context.Context, candidate string) (string, error) {
	const query = `INSERT OR IGNORE INTO vault_key (name, value, created_at) VALUES (?, ?, ?)`
	if _, err := r.db.Writer.ExecContext(ctx, query, encryptionKeyName, candidate, formatTime(time.Now())); err != nil {
		return "", fmt.Errorf("insert encryption key: %w", err)
	}
	return r.load(ctx, r.db.Writer)
}

func (r *KeyRepo) load(ctx context.Context, conn *sql.DB) (string, error) {
	const query = `SELECT value FROM vault_key WHERE name = ?`
	var value string
	err := conn.QueryRowContext(ctx, query, encryptionKeyName).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load encryption key: %w", err)
	}
	return value, nil
}
