package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dkeye/interviewer/internal/app/orch"
)

// forwarder relays manager updates to the program. push never blocks, so the
// manager may notify from inside Update or while holding its own locks.
type forwarder struct {
	mu    sync.Mutex
	queue []orch.Update
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newForwarder() *forwarder {
	return &forwarder{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

// push is an orch.Listener.
func (f *forwarder) push(u orch.Update) {
	f.mu.Lock()
	f.queue = append(f.queue, u)
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *forwarder) next() (orch.Update, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return orch.Update{}, false
	}
	u := f.queue[0]
	f.queue = f.queue[1:]
	return u, true
}

// run delivers queued updates in order until stop is called.
func (f *forwarder) run(send func(tea.Msg)) {
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
		}
		for {
			u, ok := f.next()
			if !ok {
				break
			}
			send(updateMsg(u))
		}
	}
}

func (f *forwarder) stop() {
	f.once.Do(func() { close(f.done) })
}

// connect subscribes p to m's updates and returns the function that stops
// the relay.
func connect(p *tea.Program, m *orch.Manager) func() {
	fw := newForwarder()
	m.Subscribe(fw.push)
	go fw.run(p.Send)
	return fw.stop
}
