package pass

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores identities in the wallet_passes table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL pass repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves an identity by serial number.
func (r *PostgresRepository) Get(ctx context.Context, serial string) (*Identity, error) {
	query := `
		SELECT pass_type_identifier, serial_number, authentication_token, created_at, updated_at
		FROM wallet_passes
		WHERE serial_number = $1
	`

	var p Identity
	err := r.pool.QueryRow(ctx, query, serial).Scan(
		&p.PassTypeIdentifier,
		&p.SerialNumber,
		&p.AuthenticationToken,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPassNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts an identity unless the serial is already issued.
func (r *PostgresRepository) Create(ctx context.Context, p *Identity) (bool, error) {
	query := `
		INSERT INTO wallet_passes (pass_type_identifier, serial_number, authentication_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (serial_number) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		p.PassTypeIdentifier,
		p.SerialNumber,
		p.AuthenticationToken,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Touch advances updated_at for a serial per NextVersion.
func (r *PostgresRepository) Touch(ctx context.Context, serial string, at time.Time) error {
	query := `
		UPDATE wallet_passes
		SET updated_at = GREATEST(
			date_trunc('second', $2::timestamptz),
			date_trunc('second', updated_at) + interval '1 second'
		)
		WHERE serial_number = $1
	`

	tag, err := r.pool.Exec(ctx, query, serial, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPassNotFound
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
