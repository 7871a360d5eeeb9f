package session

import "sync"

// Store is the single source of truth for the current session. Callers must
// supply a complete Session value; there is no partial update path, which
// keeps interleaved resolutions from producing torn state.
type Store struct {
	mu      sync.RWMutex
	current *Session
	// identity is the user ID the most recent auth event was issued for.
	// Resolver results tagged with a different identity are stale and must
	// be discarded.
	identity string
	watchers []chan Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{}
}

// BeginResolution records that a resolution is now in flight for userID and
// publishes a loading placeholder session. It returns the identity tag the
// resolver must present when committing its result.
func (st *Store) BeginResolution(userID, email string) string {
	st.mu.Lock()
	st.identity = userID
	st.current = &Session{UserID: userID, Email: email, Loading: true}
	snapshot := *st.current
	st.mu.Unlock()
	st.notify(snapshot)
	return userID
}

// Commit atomically replaces the session, provided the identity tag still
// matches the most recent auth event. It reports whether the write was
// applied; a false return means the result was stale and discarded.
func (st *Store) Commit(identity string, s Session) bool {
	st.mu.Lock()
	if st.identity != identity {
		st.mu.Unlock()
		return false
	}
	s.Loading = false
	st.current = &s
	snapshot := s
	st.mu.Unlock()
	st.notify(snapshot)
	return true
}

// Clear removes the session on sign-out. All role and account fields go with
// it atomically.
func (st *Store) Clear() {
	st.mu.Lock()
	st.identity = ""
	st.current = nil
	st.mu.Unlock()
	st.notify(Session{})
}

// Session returns a copy of the current session, or nil when signed out.
func (st *Store) Session() *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.current == nil {
		return nil
	}
	snapshot := *st.current
	return &snapshot
}

// Identity returns the user ID of the most recent auth event, empty when
// signed out.
func (st *Store) Identity() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.identity
}

// Watch registers a channel receiving a snapshot after every store write.
// The returned func unregisters it; callers must release on teardown.
func (st *Store) Watch() (<-chan Session, func()) {
	ch := make(chan Session, 8)
	st.mu.Lock()
	st.watchers = append(st.watchers, ch)
	st.mu.Unlock()

	cancel := func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		for i, w := range st.watchers {
			if w == ch {
				st.watchers = append(st.watchers[:i], st.watchers[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

func (st *Store) notify(s Session) {
	st.mu.RLock()
	watchers := make([]chan Session, len(st.watchers))
	copy(watchers, st.watchers)
	st.mu.RUnlock()

	for _, w := range watchers {
		select {
		case w <- s:
		default:
			// Slow watcher; drop rather than block the writer.
		}
	}
}
