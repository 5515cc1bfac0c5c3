package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository reads loyalty records from the shared database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL loyalty repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetSnapshot reads a card joined with its customer.
func (r *PostgresRepository) GetSnapshot(ctx context.Context, cardNumber string) (*Snapshot, error) {
	query := `
		SELECT lc.card_number, lc.customer_id, lc.current_points, lc.current_stamps,
		       c.id, c.full_name, c.email, c.phone, c.business_id
		FROM loyalty_cards lc
		JOIN customers c ON c.id = lc.customer_id
		WHERE lc.card_number = $1
	`

	var s Snapshot
	err := r.pool.QueryRow(ctx, query, cardNumber).Scan(
		&s.Card.CardNumber,
		&s.Card.CustomerID,
		&s.Card.CurrentPoints,
		&s.Card.CurrentStamps,
		&s.Customer.ID,
		&s.Customer.FullName,
		&s.Customer.Email,
		&s.Customer.Phone,
		&s.Customer.BusinessID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetPassConfig reads and decodes a business's pass configuration.
func (r *PostgresRepository) GetPassConfig(ctx context.Context, businessID string) (*PassConfig, error) {
	query := `
		SELECT business_id, apple_config, member_fields, custom_fields, links_fields,
		       barcode_config, locations, max_distance
		FROM passkit_configs
		WHERE business_id = $1
	`

	var (
		cfg                                               PassConfig
		apple, members, custom, links, barcode, locations []byte
	)
	err := r.pool.QueryRow(ctx, query, businessID).Scan(
		&cfg.BusinessID, &apple, &members, &custom, &links, &barcode, &locations, &cfg.MaxDistance,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	columns := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"apple_config", apple, &cfg.Appearance},
		{"member_fields", members, &cfg.MemberFields},
		{"custom_fields", custom, &cfg.CustomFields},
		{"links_fields", links, &cfg.LinkFields},
		{"barcode_config", barcode, &cfg.Barcode},
		{"locations", locations, &cfg.Locations},
	}
	for _, col := range columns {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", col.name, err)
		}
	}

	return &cfg, nil
}

var _ Repository = (*PostgresRepository)(nil)
