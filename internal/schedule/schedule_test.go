package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notioncal/internal/model"
)

type fakePass struct {
	calls  atomic.Int32
	err    error
	onCall func()
}

func (f *fakePass) Run(context.Context) (model.Report, error) {
	n := f.calls.Add(1)
	if f.onCall != nil {
		f.onCall()
	}
	return model.Report{Created: int(n)}, f.err
}

func TestRunOnceRecordsReport(t *testing.T) {
	r := NewRunner(&fakePass{err: errors.New("feed down")})

	_, ok := r.LastReport()
	assert.False(t, ok)

	_, err := r.RunOnce(context.Background())
	require.Error(t, err)

	last, ok := r.LastReport()
	require.True(t, ok)
	assert.Equal(t, 1, last.Created)
}

func TestStartRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pass := &fakePass{onCall: cancel}
	r := NewRunner(pass)

	done := make(chan error, 1)
	go func() { done <- r.Start(ctx, "0 0 1 1 *") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.Equal(t, int32(1), pass.calls.Load())
	_, ok := r.LastReport()
	assert.True(t, ok)
}

func TestStartRejectsBadSpec(t *testing.T) {
	r := NewRunner(&fakePass{})
	assert.Error(t, r.Start(context.Background(), "not a cron"))
	assert.Error(t, r.Start(context.Background(), ""))
}
