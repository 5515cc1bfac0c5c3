package registration

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectColumns = `
	device_library_identifier, pass_type_identifier, serial_number,
	push_token, authentication_token, created_at, updated_at
`

// PostgresRepository stores registrations in the wallet_devices table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL registration repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Upsert creates or updates a registration in one statement so concurrent
// registrations of the same triple cannot lose an update.
func (r *PostgresRepository) Upsert(ctx context.Context, reg *Registration) (bool, error) {
	query := `
		INSERT INTO wallet_devices (
			device_library_identifier, pass_type_identifier, serial_number,
			push_token, authentication_token, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (device_library_identifier, pass_type_identifier, serial_number) DO UPDATE SET
			push_token = EXCLUDED.push_token,
			authentication_token = EXCLUDED.authentication_token,
			updated_at = GREATEST(wallet_devices.updated_at, EXCLUDED.updated_at)
		RETURNING (xmax = 0) AS inserted, updated_at
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		reg.DeviceLibraryIdentifier,
		reg.PassTypeIdentifier,
		reg.SerialNumber,
		reg.PushToken,
		reg.AuthenticationToken,
		reg.CreatedAt,
		reg.UpdatedAt,
	).Scan(&inserted, &reg.UpdatedAt)
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// ListBySerial returns the registrations of a serial.
func (r *PostgresRepository) ListBySerial(ctx context.Context, serial string) ([]*Registration, error) {
	query := `SELECT ` + selectColumns + ` FROM wallet_devices WHERE serial_number = $1`

	rows, err := r.pool.Query(ctx, query, serial)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListByDevice returns a device's registrations for a pass type.
func (r *PostgresRepository) ListByDevice(ctx context.Context, device, passType string, since *time.Time) ([]*Registration, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM wallet_devices
		WHERE device_library_identifier = $1
		  AND pass_type_identifier = $2
		  AND ($3::timestamptz IS NULL OR updated_at > $3)
		ORDER BY serial_number
	`

	rows, err := r.pool.Query(ctx, query, device, passType, since)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Delete removes a registration.
func (r *PostgresRepository) Delete(ctx context.Context, key Key) error {
	query := `
		DELETE FROM wallet_devices
		WHERE device_library_identifier = $1 AND pass_type_identifier = $2 AND serial_number = $3
	`

	_, err := r.pool.Exec(ctx, query, key.DeviceLibraryIdentifier, key.PassTypeIdentifier, key.SerialNumber)
	return err
}

// DeleteByPushToken removes every registration for a push token.
func (r *PostgresRepository) DeleteByPushToken(ctx context.Context, token string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM wallet_devices WHERE push_token = $1`, token)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Touch advances updated_at for every registration of a serial.
func (r *PostgresRepository) Touch(ctx context.Context, serial string, at time.Time) (int64, error) {
	query := `UPDATE wallet_devices SET updated_at = GREATEST(updated_at, $2) WHERE serial_number = $1`

	tag, err := r.pool.Exec(ctx, query, serial, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collect(rows pgx.Rows) ([]*Registration, error) {
	defer rows.Close()

	var regs []*Registration
	for rows.Next() {
		var reg Registration
		err := rows.Scan(
			&reg.DeviceLibraryIdentifier,
			&reg.PassTypeIdentifier,
			&reg.SerialNumber,
			&reg.PushToken,
			&reg.AuthenticationToken,
			&reg.CreatedAt,
			&reg.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		regs = append(regs, &reg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return regs, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
