package update_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltywallet/walletsync/internal/pass"
	"github.com/loyaltywallet/walletsync/internal/push"
	"github.com/loyaltywallet/walletsync/internal/registration"
	"github.com/loyaltywallet/walletsync/internal/update"
)

const passType = "pass.com.example.loyalty"

type recordingDispatcher struct {
	serials []string
	err     error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, serial string) (*push.Result, error) {
	d.serials = append(d.serials, serial)
	if d.err != nil {
		return nil, d.err
	}
	return &push.Result{SerialNumber: serial, Attempted: 1, Sent: 1}, nil
}

type fixture struct {
	passes        *pass.Service
	registrations *registration.Service
	dispatcher    *recordingDispatcher
	svc           *update.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		passes:        pass.NewService(pass.NewInMemoryRepository(), passType),
		registrations: registration.NewService(registration.NewInMemoryRepository()),
		dispatcher:    &recordingDispatcher{},
	}
	f.svc = update.NewService(f.passes, f.registrations, f.dispatcher, zerolog.Nop())

	_, _, err := f.passes.Issue(context.Background(), "S123")
	require.NoError(t, err)
	_, err = f.registrations.Register(context.Background(), registration.RegisterInput{
		Key:       registration.Key{DeviceLibraryIdentifier: "device-1", PassTypeIdentifier: passType, SerialNumber: "S123"},
		PushToken: "tok-1",
	})
	require.NoError(t, err)
	return f
}

func TestMarkChanged_AdvancesFeedAndPushes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	before, err := f.passes.Get(ctx, "S123")
	require.NoError(t, err)
	since := before.UpdatedAt

	time.Sleep(2 * time.Millisecond)
	result, err := f.svc.MarkChanged(ctx, "S123")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, []string{"S123"}, f.dispatcher.serials)

	after, err := f.passes.Get(ctx, "S123")
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(since))

	feed, ok, err := f.registrations.Updates(ctx, "device-1", passType, &since)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"S123"}, feed.SerialNumbers)
}

func TestMarkChanged_UnknownPass(t *testing.T) {
	f := setup(t)

	_, err := f.svc.MarkChanged(context.Background(), "missing")

	assert.ErrorIs(t, err, pass.ErrPassNotFound)
	assert.Empty(t, f.dispatcher.serials)
}

func TestMarkChanged_WithoutProviderStillRecords(t *testing.T) {
	f := setup(t)
	f.dispatcher.err = push.ErrProviderNotConfigured
	ctx := context.Background()

	before, err := f.passes.Get(ctx, "S123")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	result, err := f.svc.MarkChanged(ctx, "S123")

	require.NoError(t, err)
	assert.Zero(t, result.Attempted)
	after, err := f.passes.Get(ctx, "S123")
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestNotify_DoesNotMoveUpdatedAt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	before, err := f.passes.Get(ctx, "S123")
	require.NoError(t, err)
	since := time.Now().UTC()

	_, err = f.svc.Notify(ctx, "S123")
	require.NoError(t, err)

	after, err := f.passes.Get(ctx, "S123")
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	_, ok, err := f.registrations.Updates(ctx, "device-1", passType, &since)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotify_PropagatesProviderError(t *testing.T) {
	f := setup(t)
	f.dispatcher.err = push.ErrProviderNotConfigured

	_, err := f.svc.Notify(context.Background(), "S123")

	assert.ErrorIs(t, err, push.ErrProviderNotConfigured)
}
