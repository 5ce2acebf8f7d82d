package callHandler

import "sync"

// mailbox runs jobs submitted under the same key one at a time, in
// submission order. Distinct keys drain on their own goroutines, and a
// key's goroutine exits once its queue is empty.
type mailbox struct {
	mu     sync.Mutex
	queues map[string][]func()
	wg     sync.WaitGroup
}

func newMailbox() *mailbox {
	return &mailbox{queues: make(map[string][]func())}
}

func (m *mailbox) submit(key string, job func()) {
	m.wg.Add(1)

	m.mu.Lock()
	queue, draining := m.queues[key]
	m.queues[key] = append(queue, job)
	m.mu.Unlock()

	if !draining {
		go m.drain(key)
	}
}

func (m *mailbox) drain(key string) {
	for {
		m.mu.Lock()
		queue := m.queues[key]
		if len(queue) == 0 {
			delete(m.queues, key)
			m.mu.Unlock()
			return
		}
		job := queue[0]
		queue[0] = nil
		m.queues[key] = queue[1:]
		m.mu.Unlock()

		func() {
			defer m.wg.Done()
			job()
		}()
	}
}

// wait blocks until every submitted job has run.
func (m *mailbox) wait() {
	m.wg.Wait()
}

func (m *mailbox) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}
