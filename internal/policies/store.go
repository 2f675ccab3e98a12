package policies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JaimeStill/safestack/pkg/repository"
)

// Store persists policy document versions. Versions are append-only.
type Store interface {
	// Latest returns the highest version, or an empty version-0 document
	// when nothing has been stored.
	Latest(ctx context.Context) (*Document, error)
	// Append stores doc. Returns ErrConflict if its version already exists.
	Append(ctx context.Context, doc Document) error
}

type pgStore struct {
	db *sql.DB
}

// NewStore returns a Store backed by the policy_documents table.
func NewStore(db *sql.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Latest(ctx context.Context) (*Document, error) {
	var doc repository.JSON[Document]

	err := s.db.QueryRowContext(
		ctx,
		"SELECT document FROM policy_documents ORDER BY version DESC LIMIT 1",
	).Scan(&doc)

	if errors.Is(err, sql.ErrNoRows) {
		return &Document{Policies: []Policy{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load policy document: %w", err)
	}

	if doc.V.Policies == nil {
		doc.V.Policies = []Policy{}
	}
	return &doc.V, nil
}

// Append takes a table lock so that replicas serialize on the version
// check. A version at or below the stored maximum is a conflict.
func (s *pgStore) Append(ctx context.Context, doc Document) error {
	_, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (int, error) {
		if _, err := tx.ExecContext(ctx, "LOCK TABLE policy_documents IN SHARE ROW EXCLUSIVE MODE"); err != nil {
			return 0, err
		}

		current, err := repository.Scalar[int](ctx, tx, "SELECT COALESCE(MAX(version), 0) FROM policy_documents")
		if err != nil {
			return 0, err
		}
		if doc.Version <= current {
			return current, fmt.Errorf("%w: version %d, stored %d", ErrConflict, doc.Version, current)
		}

		_, err = tx.ExecContext(
			ctx,
			"INSERT INTO policy_documents(version, updated_at, document) VALUES ($1, $2, $3)",
			doc.Version, doc.UpdatedAt, repository.JSON[Document]{V: doc},
		)
		return current, err
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConflict):
		return err
	default:
		return repository.Mapping{NotFound: ErrNotFound, Duplicate: ErrConflict}.Map(err)
	}
}
