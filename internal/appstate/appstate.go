package appstate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/mind-engage/quizmaster/internal/auth"
	"github.com/mind-engage/quizmaster/internal/localstore"
	"github.com/mind-engage/quizmaster/internal/rbac"
)

// Keys under which the session survives a restart.
const (
	KeyAuthToken = "authToken"
	KeyUser      = "user"
)

type State struct {
	AuthToken   string
	User        *auth.UserView
	SearchQuery string
}

// Action is a state transition. The set of actions is closed to this package.
type Action interface {
	apply(*State) (persist bool)
}

type SetAuthToken struct{ Token string }
type SetUser struct{ User *auth.UserView }
type Logout struct{}
type SetSearchQuery struct{ Query string }
type ClearSearch struct{}

func (a SetAuthToken) apply(s *State) bool { s.AuthToken = a.Token; return true }
func (a SetUser) apply(s *State) bool      { s.User = a.User; return true }
func (Logout) apply(s *State) bool {
	s.AuthToken, s.User, s.SearchQuery = "", nil, ""
	return true
}
func (a SetSearchQuery) apply(s *State) bool { s.SearchQuery = strings.TrimSpace(a.Query); return false }
func (ClearSearch) apply(s *State) bool      { s.SearchQuery = ""; return false }

type Store struct {
	kv localstore.Store

	mu   sync.Mutex
	st   State
	subs map[int]func(State)
	next int
}

// Load restores the persisted token and user from kv. A corrupt user entry is
// treated as logged out.
func Load(ctx context.Context, kv localstore.Store) (*Store, error) {
	s := &Store{kv: kv, subs: map[int]func(State){}}
	if kv == nil {
		return s, nil
	}
	tok, err := kv.Get(ctx, KeyAuthToken)
	switch {
	case err == nil:
		s.st.AuthToken = string(tok)
	case !errors.Is(err, localstore.ErrNotFound):
		return nil, err
	}
	raw, err := kv.Get(ctx, KeyUser)
	switch {
	case err == nil:
		var u auth.UserView
		if json.Unmarshal(raw, &u) == nil {
			s.st.User = &u
		} else {
			s.st.AuthToken = ""
		}
	case !errors.Is(err, localstore.ErrNotFound):
		return nil, err
	}
	return s, nil
}

// Dispatch applies a, persists auth changes, then notifies subscribers.
func (s *Store) Dispatch(ctx context.Context, a Action) error {
	s.mu.Lock()
	persist := a.apply(&s.st)
	st := s.st
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	var err error
	if persist {
		err = s.persistLocked(ctx)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
	return err
}

func (s *Store) persistLocked(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	if s.st.AuthToken == "" {
		if err := s.kv.Delete(ctx, KeyAuthToken); err != nil {
			return err
		}
	} else if err := s.kv.Set(ctx, KeyAuthToken, []byte(s.st.AuthToken)); err != nil {
		return err
	}
	if s.st.User == nil {
		return s.kv.Delete(ctx, KeyUser)
	}
	b, err := json.Marshal(s.st.User)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, KeyUser, b)
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

func (s *Store) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.AuthToken != ""
}

// Role is RoleUnknown when nobody is logged in.
func (s *Store) Role() rbac.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.User == nil {
		return rbac.RoleUnknown
	}
	return s.st.User.Role
}

// Subscribe registers fn for every state change until cancel is called.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
