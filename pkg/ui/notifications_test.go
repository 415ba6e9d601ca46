package ui

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigmabot/pkg/engage"
)

type recordingSender struct {
	mu     sync.Mutex
	titles []string
	gate   chan struct{}
}

func (r *recordingSender) Send(title, message string) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return errors.New("no display")
}

func (r *recordingSender) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

func TestNotifierOnlyRaisesFailures(t *testing.T) {
	sender := &recordingSender{}
	var console bytes.Buffer
	n := NewNotifierWithSender(sender, WithConsole(&console))

	n.Observe(engage.Event{Action: engage.ActionLogin})
	n.Observe(engage.Event{Action: engage.ActionFavorite, Err: errors.New("rejected")})
	n.Observe(engage.Event{Action: engage.ActionLogin, Err: errors.New("401")})
	n.Observe(engage.Event{Action: engage.ActionSessionError, Err: errors.New("search failed")})
	n.Close()

	assert.Equal(t, []string{"SIGMABOT LOGIN FAILED", "SIGMABOT SESSION FAILED"}, sender.sent())
	assert.Contains(t, console.String(), "search failed")
}

func TestNotifierObserveDoesNotWaitForDelivery(t *testing.T) {
	sender := &recordingSender{gate: make(chan struct{})}
	n := NewNotifierWithSender(sender, WithConsole(nil))

	returned := make(chan struct{})
	go func() {
		n.Observe(engage.Event{Action: engage.ActionSessionError, Err: errors.New("boom")})
		n.Observe(engage.Event{Action: engage.ActionLogin, Err: errors.New("401")})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Observe blocked on a stalled sender")
	}

	close(sender.gate)
	n.Close()
	assert.Equal(t, []string{"SIGMABOT SESSION FAILED", "SIGMABOT LOGIN FAILED"}, sender.sent())
}

func TestNotifierDropsWhenQueueIsFull(t *testing.T) {
	sender := &recordingSender{gate: make(chan struct{})}
	n := NewNotifierWithSender(sender, WithConsole(nil))

	total := notificationQueueSize + 5
	for i := 0; i < total; i++ {
		n.SendError("SIGMABOT SESSION FAILED", "boom")
	}

	close(sender.gate)
	n.Close()

	// the worker may have taken one message off the queue before the burst filled it
	delivered := len(sender.sent())
	require.GreaterOrEqual(t, delivered, notificationQueueSize)
	assert.Equal(t, total, delivered+n.Dropped())
}

func TestNotifierQuietConsole(t *testing.T) {
	var console bytes.Buffer
	n := NewNotifierWithSender(nil, WithConsole(&console), WithConsole(nil))
	n.SendNotification("SIGMABOT", "started")
	n.Close()
	assert.Empty(t, console.String())
}

func TestNotifierCloseIsIdempotent(t *testing.T) {
	n := NewNotifierWithSender(nil, WithConsole(nil))
	n.Close()
	assert.NotPanics(t, func() {
		n.Close()
		n.Observe(engage.Event{Action: engage.ActionSessionError, Err: errors.New("boom")})
	})
	assert.Zero(t, n.Dropped())
}
