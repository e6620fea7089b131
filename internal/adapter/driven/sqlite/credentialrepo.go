package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
	"github.com/bejocbrian/bringYourKey/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port
// interface. It stores ciphertext exactly as handed over.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// Put stores or replaces the credential for cred.Provider.
func (r *CredentialRepo) Put(ctx context.Context, cred model.StoredCredential) error {
	const query = `
		INSERT INTO credentials (provider, ciphertext, display_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			ciphertext = excluded.ciphertext,
			display_name = excluded.display_name,
			created_at = excluded.created_at
	`
	_, err := r.db.Writer.ExecContext(ctx, query,
		string(cred.Provider), cred.Ciphertext, cred.DisplayName, formatTime(cred.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put credential %q: %w", cred.Provider, err)
	}
	return nil
}

// Get returns the credential for provider, or (nil, nil) if none exists.
func (r *CredentialRepo) Get(ctx context.Context, provider model.ProviderID) (*model.StoredCredential, error) {
	const query = `SELECT provider, ciphertext, display_name, created_at FROM credentials WHERE provider = ?`

	cred, err := scanCredential(r.db.Reader.QueryRowContext(ctx, query, string(provider)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %q: %w", provider, err)
	}
	return cred, nil
}

// List returns all stored credentials ordered by provider.
func (r *CredentialRepo) List(ctx context.Context) ([]model.StoredCredential, error) {
	const query = `SELECT provider, ciphertext, display_name, created_at FROM credentials ORDER BY provider`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.StoredCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// Delete removes the credential for provider.
func (r *CredentialRepo) Delete(ctx context.Context, provider model.ProviderID) error {
	const query = `DELETE FROM credentials WHERE provider = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, string(provider)); err != nil {
		return fmt.Errorf("delete credential %q: %w", provider, err)
	}
	return nil
}

// DeleteAll removes every stored credential.
func (r *CredentialRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("delete all credentials: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*model.StoredCredential, error) {
	var (
		cred      model.StoredCredential
		provider  string
		createdAt string
	)
	if err := row.Scan(&provider, &cred.Ciphertext, &cred.DisplayName, &createdAt); err != nil {
		return nil, err
	}
	cred.Provider = model.ProviderID(provider)

	var err error
	cred.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for credential %q: %w", provider, err)
	}
	return &cred, nil
}
