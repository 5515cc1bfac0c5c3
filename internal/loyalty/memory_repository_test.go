package loyalty_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltywallet/walletsync/internal/loyalty"
)

func TestInMemoryRepository_GetSnapshot(t *testing.T) {
	repo := loyalty.NewInMemoryRepository()
	repo.PutCustomer(loyalty.Customer{ID: "c1", FullName: "Ada Lovelace", BusinessID: "b1"})
	repo.PutCard(loyalty.Card{CardNumber: "S123", CustomerID: "c1", CurrentPoints: 40})

	snap, err := repo.GetSnapshot(context.Background(), "S123")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", snap.Customer.FullName)
	assert.Equal(t, 40, snap.Card.CurrentPoints)

	repo.PutCard(loyalty.Card{CardNumber: "S123", CustomerID: "c1", CurrentPoints: 55})

	snap, err = repo.GetSnapshot(context.Background(), "S123")
	require.NoError(t, err)
	assert.Equal(t, 55, snap.Card.CurrentPoints, "reads reflect the latest write")
}

func TestInMemoryRepository_Missing(t *testing.T) {
	repo := loyalty.NewInMemoryRepository()
	repo.PutCard(loyalty.Card{CardNumber: "orphan", CustomerID: "nobody"})

	_, err := repo.GetSnapshot(context.Background(), "S404")
	assert.ErrorIs(t, err, loyalty.ErrCardNotFound)

	_, err = repo.GetSnapshot(context.Background(), "orphan")
	assert.ErrorIs(t, err, loyalty.ErrCardNotFound)

	_, err = repo.GetPassConfig(context.Background(), "b404")
	assert.ErrorIs(t, err, loyalty.ErrConfigNotFound)
}

func TestInMemoryRepository_GetPassConfig(t *testing.T) {
	repo := loyalty.NewInMemoryRepository()
	repo.PutPassConfig(loyalty.PassConfig{
		BusinessID: "b1",
		Appearance: loyalty.Appearance{OrganizationName: "Coffee Co"},
	})

	cfg, err := repo.GetPassConfig(context.Background(), "b1")

	require.NoError(t, err)
	assert.Equal(t, "Coffee Co", cfg.Appearance.OrganizationName)
}
