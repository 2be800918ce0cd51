package oauth

import (
	"sort"
	"sync"
	"time"

	"signet/pkg/logging"
)

// AuthState describes where a provider sits in the authentication lifecycle.
type AuthState int

const (
	// StateUnauthenticated means no usable credentials exist.
	StateUnauthenticated AuthState = iota
	// StateAuthenticating means a browser flow is in progress.
	StateAuthenticating
	// StateAuthenticated means valid or refreshable credentials exist.
	StateAuthenticated
	// StateError means the last flow attempt failed.
	StateError
)

// String returns a human-readable name for the state.
func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state as its name in JSON and YAML output.
func (s AuthState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AuthStatus is the observable status of one provider.
type AuthStatus struct {
	Provider  string    `json:"provider"`
	State     AuthState `json:"state"`
	Email     string    `json:"email,omitempty"`
	ProjectID string    `json:"projectId,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`

	// LastError describes the failure when State is StateError.
	LastError string `json:"lastError,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Authenticated reports whether the provider has a linked account.
func (s AuthStatus) Authenticated() bool {
	return s.State == StateAuthenticated
}

// stateWatcher is one subscription to status updates.
type stateWatcher struct {
	ch chan AuthStatus
	// provider filters updates; empty means all providers.
	provider string
}

// stateTracker holds the latest status per provider and fans updates out to
// watchers. Watcher channels have capacity one and a pending update is
// replaced rather than queued, so a slow receiver always observes the most
// recent state instead of a backlog.
type stateTracker struct {
	mu       sync.Mutex
	current  map[string]AuthStatus
	watchers map[*stateWatcher]struct{}
	closed   bool
}

func newStateTracker() *stateTracker {
	return &stateTracker{
		current:  make(map[string]AuthStatus),
		watchers: make(map[*stateWatcher]struct{}),
	}
}

// set records the new status and notifies matching watchers. Delivery runs
// under the tracker lock so watchers observe updates in publication order.
func (t *stateTracker) set(status AuthStatus) {
	status.UpdatedAt = time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	prev, had := t.current[status.Provider]
	t.current[status.Provider] = status

	if had && prev.State != status.State {
		logging.Debug("OAuth", "Provider %s state changed: %s -> %s", status.Provider, prev.State, status.State)
	}

	for w := range t.watchers {
		if w.provider != "" && w.provider != status.Provider {
			continue
		}
		replacePending(w.ch, status)
	}
}

// replacePending puts status into a capacity-one channel, dropping a stale
// undelivered value if one is sitting there.
func replacePending(ch chan AuthStatus, status AuthStatus) {
	for {
		select {
		case ch <- status:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// get returns the latest status for the provider.
func (t *stateTracker) get(provider string) (AuthStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, ok := t.current[provider]
	return status, ok
}

// snapshot returns the latest status of every tracked provider, sorted by id.
func (t *stateTracker) snapshot() []AuthStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.snapshotLocked()
}

// watch subscribes to status updates for provider (empty for all). The
// current status, if any, is delivered immediately. The returned cancel
// removes the subscription and closes the channel; it is safe to call more
// than once.
func (t *stateTracker) watch(provider string) (<-chan AuthStatus, func()) {
	w := &stateWatcher{
		ch:       make(chan AuthStatus, 1),
		provider: provider,
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		closed := make(chan AuthStatus)
		close(closed)
		return closed, func() {}
	}

	t.watchers[w] = struct{}{}

	if provider == "" {
		for _, status := range t.snapshotLocked() {
			replacePending(w.ch, status)
		}
	} else if status, ok := t.current[provider]; ok {
		replacePending(w.ch, status)
	}
	t.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			if _, ok := t.watchers[w]; ok {
				delete(t.watchers, w)
				close(w.ch)
			}
			t.mu.Unlock()
		})
	}

	return w.ch, cancel
}

// snapshotLocked is snapshot without taking the lock. Seeding an all-provider
// watcher with multiple statuses only keeps the last one (capacity one); the
// caller is expected to reconcile via snapshot first when it needs them all.
func (t *stateTracker) snapshotLocked() []AuthStatus {
	out := make([]AuthStatus, 0, len(t.current))
	for _, status := range t.current {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// closeAll tears down every subscription. Further sets are ignored and
// further watches return a closed channel.
func (t *stateTracker) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true

	for w := range t.watchers {
		close(w.ch)
	}
	t.watchers = make(map[*stateWatcher]struct{})
}
