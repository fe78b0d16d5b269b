package state

import "sync"

// Session is the signed-in identity of a visitor. Observers registered with
// Observe are notified when the backend reports the session as expired.
type Session struct {
	mu        sync.Mutex
	username  string
	nextID    int
	observers map[int]func()
}

func (s *Session) SignIn(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
}

func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = ""
}

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *Session) Authenticated() bool {
	return s.Username() != ""
}

// Observe registers fn to run on Expire. The returned function removes it.
func (s *Session) Observe(fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observers == nil {
		s.observers = make(map[int]func())
	}
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Expire signs the visitor out and notifies observers in registration
// order. Observers run without the session lock held.
func (s *Session) Expire() {
	s.mu.Lock()
	s.username = ""
	fns := make([]func(), 0, len(s.observers))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
