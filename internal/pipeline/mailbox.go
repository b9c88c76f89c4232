package pipeline

import "sync"

// mailbox is a single-slot buffer per subscriber. A newer result overwrites
// an unconsumed one and bumps the drop counter; subscribers always get the
// latest frame, never a backlog.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	result *Result
	drops  uint64
	closed bool
	wake   bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) publish(r *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.result != nil {
		m.drops++
	}
	m.result = r
	m.cond.Signal()
}

// read blocks until a result is available. Returns nil when the subscription
// is closed or the loop stopped while waiting.
func (m *mailbox) read() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.result == nil && !m.closed && !m.wake {
		m.cond.Wait()
	}

	if m.closed {
		return nil
	}
	if m.result == nil {
		m.wake = false
		return nil
	}

	r := m.result
	m.result = nil
	return r
}

// interrupt wakes a blocked reader without delivering a result.
func (m *mailbox) interrupt() {
	m.mu.Lock()
	m.wake = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *mailbox) dropCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
