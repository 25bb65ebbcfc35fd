// Package session persists the operator's sign-in (token and profile) across
// terminal restarts.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tillworks/tillfront"
	"github.com/tillworks/tillfront/model"
	pr "github.com/tillworks/tillfront/provider"
)

const defaultKey = "session:operator"

// Session is the persisted sign-in state.
type Session struct {
	Token   string     `json:"token"`
	User    model.User `json:"user"`
	SavedAt time.Time  `json:"savedAt"`
}

// Store reads and writes the session through a byte provider. A corrupt
// record is deleted and reported as a signed-out state, never as an error.
type Store struct {
	provider pr.Provider
	key      string
	log      tillfront.Logger
}

type Options struct {
	// Required
	Provider pr.Provider

	Key    string // storage key; "session:operator" by default
	Logger tillfront.Logger
}

func New(opts Options) (*Store, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("session: provider is required")
	}
	log := opts.Logger
	if log == nil {
		log = tillfront.NopLogger{}
	}
	key := opts.Key
	if key == "" {
		key = defaultKey
	}
	return &Store{provider: opts.Provider, key: key, log: log}, nil
}

// Load returns the saved session, or ok=false when none is saved.
func (s *Store) Load(ctx context.Context) (Session, bool, error) {
	raw, ok, err := s.provider.Get(ctx, s.key)
	if err != nil || !ok {
		return Session{}, false, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.log.Warn("corrupt session record dropped", tillfront.Fields{"err": err})
		_ = s.provider.Del(ctx, s.key)
		return Session{}, false, nil
	}
	if sess.Token == "" {
		_ = s.provider.Del(ctx, s.key)
		return Session{}, false, nil
	}
	return sess, true, nil
}

// Save persists the session. The record never expires; sign-out clears it.
func (s *Store) Save(ctx context.Context, sess Session) error {
	if sess.Token == "" {
		return fmt.Errorf("session: token is required")
	}
	if sess.SavedAt.IsZero() {
		sess.SavedAt = time.Now()
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if _, err := s.provider.Set(ctx, s.key, raw, 0); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

// Clear removes the saved session on sign-out.
func (s *Store) Clear(ctx context.Context) error {
	return s.provider.Del(ctx, s.key)
}
