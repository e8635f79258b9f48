package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetach_DeliversResult(t *testing.T) {
	r := Detach(func(ctx context.Context) (int, error) {
		return 42, nil
	})

	v, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDetach_DeliversError(t *testing.T) {
	boom := errors.New("boom")
	r := Detach(func(ctx context.Context) (string, error) {
		return "", boom
	})

	_, err := r.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestDetach_SurvivesCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan struct{})

	r := Detach(func(ctx context.Context) (string, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		// The detached context is never cancelled by the caller.
		assert.NoError(t, ctx.Err())
		close(finished)
		return "done", nil
	})

	<-started
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Wait(ctx)
	require.Error(t, err, "cancelled wait must detach")
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("operation did not run to completion after the caller left")
	}

	// The outcome stays readable from a later wait.
	v, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestDetach_RecoversPanic(t *testing.T) {
	r := Detach(func(ctx context.Context) (int, error) {
		panic("worktree corrupted")
	})

	_, err := r.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worktree corrupted")
}
