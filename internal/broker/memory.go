package broker

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/secnexus/internal/logging"
)

type memMsg struct {
	subject string
	data    []byte
}

type memSub struct {
	subject string
	queue   string
	durable bool
	ch      chan memMsg
	done    chan struct{}
}

// maxBacklog bounds the durable messages kept per queue while it has no
// subscriber.
const maxBacklog = 1024

// Memory is an in-process Broker. Each subscription gets its own delivery
// goroutine; queue groups receive each message once, round-robin. Durable
// messages without a subscriber are held until one appears, and a rejected
// durable message is offered again after RedeliveryDelay.
type Memory struct {
	log logging.Logger

	mu      sync.Mutex
	subs    []*memSub
	rr      map[string]int
	backlog map[string][]memMsg
	closed  bool
	wg      sync.WaitGroup
}

func NewMemory(log logging.Logger) *Memory {
	return &Memory{log: log, rr: make(map[string]int), backlog: make(map[string][]memMsg)}
}

func (m *Memory) Publish(_ context.Context, subject string, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return err
	}
	msg := memMsg{subject: subject, data: data}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	var targets []*memSub
	groups := make(map[string][]*memSub)
	for _, s := range m.subs {
		if !matchSubject(s.subject, subject) {
			continue
		}
		if s.queue == "" {
			targets = append(targets, s)
			continue
		}
		groups[s.queue] = append(groups[s.queue], s)
	}
	for q, members := range groups {
		targets = append(targets, m.pickLocked(q, members))
	}
	if q, ok := durableSubjects[subject]; ok && len(groups[q]) == 0 {
		m.parkLocked(q, msg)
	}
	m.mu.Unlock()

	for _, s := range targets {
		m.deliver(s, msg)
	}
	return nil
}

func (m *Memory) pickLocked(queue string, members []*memSub) *memSub {
	n := m.rr[queue]
	m.rr[queue] = n + 1
	return members[n%len(members)]
}

func (m *Memory) parkLocked(queue string, msg memMsg) {
	q := m.backlog[queue]
	if len(q) >= maxBacklog {
		m.log.Warn(context.Background(), "backlog full, dropping oldest message", "queue", queue)
		q = q[1:]
	}
	m.backlog[queue] = append(q, msg)
}

func (m *Memory) deliver(s *memSub, msg memMsg) {
	select {
	case s.ch <- msg:
	case <-s.done:
		if s.durable {
			m.requeue(s.queue, msg)
		}
	}
}

// requeue hands msg to another member of queue, or parks it.
func (m *Memory) requeue(queue string, msg memMsg) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	var members []*memSub
	for _, s := range m.subs {
		if s.queue == queue && matchSubject(s.subject, msg.subject) {
			members = append(members, s)
		}
	}
	if len(members) == 0 {
		m.parkLocked(queue, msg)
		m.mu.Unlock()
		return
	}
	s := m.pickLocked(queue, members)
	m.mu.Unlock()
	m.deliver(s, msg)
}

func (m *Memory) Subscribe(subject, queue string, h Handler) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	s := &memSub{
		subject: subject,
		queue:   queue,
		durable: isDurable(subject, queue),
		ch:      make(chan memMsg, 64),
		done:    make(chan struct{}),
	}
	m.subs = append(m.subs, s)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-s.done:
				return
			case msg := <-s.ch:
				if err := h(context.Background(), msg.data); err != nil {
					m.log.Error(context.Background(), "message handler failed", "subject", msg.subject, "error", err)
					if s.durable {
						time.AfterFunc(RedeliveryDelay, func() { m.requeue(s.queue, msg) })
					}
				}
			}
		}
	}()

	if s.durable {
		var held, kept []memMsg
		for _, msg := range m.backlog[queue] {
			if matchSubject(subject, msg.subject) {
				held = append(held, msg)
			} else {
				kept = append(kept, msg)
			}
		}
		m.backlog[queue] = kept
		if len(held) > 0 {
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				for _, msg := range held {
					m.deliver(s, msg)
				}
			}()
		}
	}

	var once sync.Once
	return func() { once.Do(func() { m.remove(s) }) }, nil
}

func (m *Memory) remove(s *memSub) {
	m.mu.Lock()
	for i, cur := range m.subs {
		if cur == s {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			close(s.done)
			break
		}
	}
	m.mu.Unlock()
	if !s.durable {
		return
	}
	// undelivered durable messages go back to the queue
	for {
		select {
		case msg := <-s.ch:
			m.requeue(s.queue, msg)
		default:
			return
		}
	}
}

// Close stops every subscription and waits for in-flight handlers.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, s := range m.subs {
		close(s.done)
	}
	m.subs = nil
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

// matchSubject supports the NATS wildcards "*" (one token) and ">" (the
// rest of the subject).
func matchSubject(pattern, subject string) bool {
	for {
		pTok, pRest, pMore := cut(pattern)
		sTok, sRest, sMore := cut(subject)
		switch {
		case pTok == ">":
			return sTok != ""
		case pTok != "*" && pTok != sTok:
			return false
		case sTok == "":
			return false
		}
		if !pMore || !sMore {
			return pMore == sMore
		}
		pattern, subject = pRest, sRest
	}
}

func cut(s string) (tok, rest string, more bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
