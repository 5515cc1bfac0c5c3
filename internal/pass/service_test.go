package pass_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltywallet/walletsync/internal/pass"
)

func TestService_IssueIsIdempotent(t *testing.T) {
	repo := pass.NewInMemoryRepository()
	svc := pass.NewService(repo, "pass.com.example.loyalty")
	ctx := context.Background()

	first, created, err := svc.Issue(ctx, "CARD-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, first.AuthenticationToken, 32)
	assert.Equal(t, "pass.com.example.loyalty", first.PassTypeIdentifier)

	second, created, err := svc.Issue(ctx, "CARD-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.AuthenticationToken, second.AuthenticationToken)
}

func TestService_MarkChangedOnlyMovesForward(t *testing.T) {
	repo := pass.NewInMemoryRepository()
	svc := pass.NewService(repo, "pass.com.example.loyalty")
	ctx := context.Background()

	issued, _, err := svc.Issue(ctx, "CARD-1")
	require.NoError(t, err)
	assert.Zero(t, issued.UpdatedAt.Nanosecond(), "versions are whole seconds")

	later := issued.UpdatedAt.Add(time.Minute)
	require.NoError(t, svc.MarkChanged(ctx, "CARD-1", later))
	require.NoError(t, svc.MarkChanged(ctx, "CARD-1", issued.UpdatedAt))

	got, err := svc.Get(ctx, "CARD-1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(later.Add(time.Second)), "a stale timestamp still counts as a change")
}

func TestNextVersion(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 46, 11, 0, time.UTC)

	tests := []struct {
		name    string
		current time.Time
		at      time.Time
		want    time.Time
	}{
		{"later second", base, base.Add(5*time.Second + 300*time.Millisecond), base.Add(5 * time.Second)},
		{"same second", base, base.Add(200 * time.Millisecond), base.Add(time.Second)},
		{"earlier", base, base.Add(-time.Hour), base.Add(time.Second)},
		{"sub-second current", base.Add(400 * time.Millisecond), base.Add(900 * time.Millisecond), base.Add(time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(pass.NextVersion(tt.current, tt.at)))
		})
	}
}

func TestService_MarkChangedUnknownPass(t *testing.T) {
	svc := pass.NewService(pass.NewInMemoryRepository(), "pass.com.example.loyalty")

	err := svc.MarkChanged(context.Background(), "missing", time.Now())

	assert.ErrorIs(t, err, pass.ErrPassNotFound)
}
