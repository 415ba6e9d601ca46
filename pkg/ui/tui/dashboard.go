package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"sigmabot/pkg/engage"
	"sigmabot/pkg/ratelimit"
)

const queueSize = 256

// Dashboard renders engager activity in the terminal. It implements
// engage.Observer; messages are queued and dropped when the UI falls behind
// so the engager never blocks on rendering.
type Dashboard struct {
	program *tea.Program
	queue   chan tea.Msg

	mu      sync.Mutex
	dropped int
}

// NewDashboard creates a full-screen dashboard
func NewDashboard(opts ...tea.ProgramOption) *Dashboard {
	model := NewModel()
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}

	return &Dashboard{
		program: tea.NewProgram(&model, opts...),
		queue:   make(chan tea.Msg, queueSize),
	}
}

// Run shows the dashboard until the user quits or Stop is called
func (d *Dashboard) Run() error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case msg := <-d.queue:
				d.program.Send(msg)
			case <-done:
				return
			}
		}
	}()

	_, err := d.program.Run()
	return err
}

// Stop reports the engager's result and closes the dashboard
func (d *Dashboard) Stop(err error) {
	d.program.Send(StoppedMsg{Err: err})
}

// Observe implements engage.Observer
func (d *Dashboard) Observe(ev engage.Event) {
	d.enqueue(EventMsg{Event: ev})
}

// PollCompleted implements engage.Observer
func (d *Dashboard) PollCompleted(stats engage.Stats, quota []ratelimit.Status) {
	d.enqueue(PollMsg{Stats: stats, Quota: quota})
}

// Dropped returns how many messages were discarded on a full queue
func (d *Dashboard) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dashboard) enqueue(msg tea.Msg) {
	select {
	case d.queue <- msg:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
	}
}
