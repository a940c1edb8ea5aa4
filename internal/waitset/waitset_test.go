package waitset

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/iceoryx2/internal/ioerrors"
)

type boolSource struct {
	ready atomic.Bool
	kind  string
}

func (s *boolSource) Poll() bool   { return s.ready.Swap(false) }
func (s *boolSource) Kind() string { return s.kind }

func TestWaitAndProcessDispatchesReadySources(t *testing.T) {
	ws := New(0)
	src := &boolSource{kind: "test"}
	src.ready.Store(true)
	guard := ws.Attach(src)
	defer guard.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var fired atomic.Int32
	go func() {
		_ = ws.WaitAndProcess(ctx, func(id AttachmentId) error {
			fired.Add(1)
			cancel()
			return nil
		})
	}()

	require.Eventually(t, func() bool { return fired.Load() > 0 }, time.Second, time.Millisecond)
}

func TestWaitAndProcessRejectsReentrantCall(t *testing.T) {
	ws := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		_ = ws.WaitAndProcess(ctx, func(id AttachmentId) error {
			close(started)
			return nil
		})
	}()

	<-startedOrTimeout(started)
	err := ws.WaitAndProcess(context.Background(), func(AttachmentId) error { return nil })
	require.Error(t, err)
	code, ok := ioerrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ioerrors.ReentrantInvocation, code)
}

func startedOrTimeout(ch chan struct{}) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		select {
		case <-ch:
		case <-time.After(50 * time.Millisecond):
		}
		close(out)
	}()
	return out
}

func TestRequestStopEndsLoop(t *testing.T) {
	ws := New(0)
	done := make(chan error, 1)
	go func() {
		done <- ws.WaitAndProcess(context.Background(), func(AttachmentId) error { return nil })
	}()

	time.Sleep(5 * time.Millisecond)
	ws.RequestStop()

	select {
	case err := <-done:
		require.Error(t, err)
		code, ok := ioerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, ioerrors.StopRequested, code)
	case <-time.After(time.Second):
		t.Fatal("WaitAndProcess did not return after RequestStop")
	}
}

func TestDeadlineSourceFiresAfterInterval(t *testing.T) {
	d := NewDeadlineSource("heartbeat", 10*time.Millisecond)
	assert.False(t, d.Poll())
	time.Sleep(15 * time.Millisecond)
	assert.True(t, d.Poll())
	assert.False(t, d.Poll())
}
