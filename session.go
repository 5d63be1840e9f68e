package tally

import (
	"context"

	"github.com/alexedwards/scs/v2"
)

// Session provides access to the user's session data.
// Session data persists across page views for the same browser.
type Session struct {
	ctx     context.Context
	manager *scs.SessionManager
}

func (s *Session) ok() bool {
	return s.manager != nil && s.ctx != nil
}

// GetInt retrieves an int value from the session.
func (s *Session) GetInt(key string) int {
	if !s.ok() {
		return 0
	}
	return s.manager.GetInt(s.ctx, key)
}

// Set stores a value in the session.
func (s *Session) Set(key string, val any) {
	if !s.ok() {
		return
	}
	s.manager.Put(s.ctx, key, val)
}

// Delete removes a value from the session.
func (s *Session) Delete(key string) {
	if !s.ok() {
		return
	}
	s.manager.Remove(s.ctx, key)
}
