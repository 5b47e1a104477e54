package services

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/secnexus/internal/models"
)

// AuthState is one auth-state change. User is nil after sign-out.
type AuthState struct {
	User *models.User
	At   time.Time
}

// authHub fans auth-state changes out to subscribers. A slow subscriber only
// sees the latest state.
type authHub struct {
	mu   sync.Mutex
	subs map[int]chan AuthState
	next int
	last *AuthState
}

func newAuthHub() *authHub {
	return &authHub{subs: make(map[int]chan AuthState)}
}

func (h *authHub) subscribe() (<-chan AuthState, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan AuthState, 1)
	id := h.next
	h.next++
	h.subs[id] = ch
	if h.last != nil {
		ch <- *h.last
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

func (h *authHub) publish(u *models.User, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := AuthState{At: at}
	if u != nil {
		cp := *u
		st.User = &cp
	}
	h.last = &st
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}
