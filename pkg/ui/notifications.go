package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"sigmabot/pkg/engage"
	"sigmabot/pkg/ratelimit"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// notificationQueueSize bounds pending notifications; more are dropped
const notificationQueueSize = 16

type notification struct {
	title   string
	message string
	isError bool
}

// Notifier raises desktop notifications for events that need an operator:
// failed sessions and failed logins. It implements engage.Observer.
// Delivery runs on its own goroutine, so Observe never waits on the
// desktop or the console.
type Notifier struct {
	sender  NotificationSender
	console io.Writer

	mu      sync.Mutex
	closed  bool
	dropped int
	queue   chan notification
	done    chan struct{}
}

// NotifierOption configures a Notifier
type NotifierOption func(*Notifier)

// WithConsole echoes notifications to w. A nil w disables the echo, which
// is needed while the dashboard owns the terminal.
func WithConsole(w io.Writer) NotifierOption {
	return func(n *Notifier) { n.console = w }
}

// NewNotifier picks a sender for the current platform. Platforms without
// one only echo to the console.
func NewNotifier(opts ...NotifierOption) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	}
	return NewNotifierWithSender(sender, opts...)
}

// NewNotifierWithSender creates a Notifier using sender and starts its
// delivery goroutine. Close stops it.
func NewNotifierWithSender(sender NotificationSender, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		sender:  sender,
		console: os.Stdout,
		queue:   make(chan notification, notificationQueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	go n.deliver()
	return n
}

// SendNotification queues an informational notification
func (n *Notifier) SendNotification(title, message string) {
	n.enqueue(notification{title: title, message: message})
}

// SendError queues an error notification
func (n *Notifier) SendError(title, message string) {
	n.enqueue(notification{title: title, message: message, isError: true})
}

// Dropped returns how many notifications were discarded on a full queue
func (n *Notifier) Dropped() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

// Close delivers what is queued and stops the delivery goroutine.
// Later notifications are discarded.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}

func (n *Notifier) enqueue(msg notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- msg:
	default:
		n.dropped++
	}
}

func (n *Notifier) deliver() {
	defer close(n.done)
	for msg := range n.queue {
		if n.console != nil {
			if msg.isError {
				fmt.Fprintf(n.console, "\n%s: %s\n", Red(msg.title), Red(msg.message))
			} else {
				fmt.Fprintf(n.console, "\n%s: %s\n", Cyan(msg.title), Yellow(msg.message))
			}
		}
		if n.sender != nil {
			// best effort
			_ = n.sender.Send(msg.title, msg.message)
		}
	}
}

// Observe implements engage.Observer
func (n *Notifier) Observe(ev engage.Event) {
	if ev.Err == nil {
		return
	}
	switch ev.Action {
	case engage.ActionSessionError:
		n.SendError("SIGMABOT SESSION FAILED", ev.Err.Error())
	case engage.ActionLogin:
		n.SendError("SIGMABOT LOGIN FAILED", ev.Err.Error())
	}
}

// PollCompleted implements engage.Observer
func (n *Notifier) PollCompleted(engage.Stats, []ratelimit.Status) {}
