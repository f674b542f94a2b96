package service

import (
	"sync"

	"github.com/binarjoin/syncengine/models"
)

// Phase is the coordinator's position in its cycle state machine.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePulling Phase = "pulling"
	PhasePushing Phase = "pushing"
	PhaseError   Phase = "error"
)

// stateHolder owns the observable SyncState and its subscribers. All
// mutation goes through update so that every change is broadcast exactly
// once, with an independent copy per subscriber.
type stateHolder struct {
	mu      sync.RWMutex
	state   models.SyncState
	phase   Phase
	subs    map[int]func(models.SyncState)
	nextSub int
}

func newStateHolder() *stateHolder {
	return &stateHolder{
		state: models.SyncState{IsOnline: true},
		phase: PhaseIdle,
		subs:  make(map[int]func(models.SyncState)),
	}
}

func (h *stateHolder) snapshot() models.SyncState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.Clone()
}

func (h *stateHolder) currentPhase() Phase {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.phase
}

// update applies mutate to the state under the lock, then notifies
// subscribers outside of it. Subscribers receive clones so a slow or
// misbehaving callback cannot corrupt the source of truth.
func (h *stateHolder) update(mutate func(*models.SyncState)) {
	h.mu.Lock()
	mutate(&h.state)
	snapshot := h.state.Clone()
	subs := make([]func(models.SyncState), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot.Clone())
	}
}

func (h *stateHolder) setPhase(p Phase) {
	h.mu.Lock()
	h.phase = p
	h.mu.Unlock()
}

func (h *stateHolder) subscribe(fn func(models.SyncState)) func() {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}
