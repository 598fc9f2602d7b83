package server

import (
	"errors"

	"github.com/rs/zerolog"
)

var (
	ErrNotAuthenticated = errors.New("sender not authenticated")
	ErrTargetOffline    = errors.New("target not found or offline")
)

// Router delivers messages across sessions: broadcast, private delivery and
// presence listing. Delivery is fire-and-forget over the live socket; a
// failed write to one recipient never aborts delivery to the others.
type Router struct {
	registry *Registry
	log      zerolog.Logger
}

func NewRouter(registry *Registry, log zerolog.Logger) *Router {
	return &Router{registry: registry, log: log}
}

// Broadcast sends body to every authenticated session except excludeID.
// Per-recipient write failures are logged locally, never reported to the
// sender.
func (r *Router) Broadcast(body string, excludeID uint32) {
	for _, sess := range r.registry.Snapshot() {
		if sess.ID() == excludeID || !sess.Authenticated() {
			continue
		}
		if err := sess.SendLine(body); err != nil {
			r.log.Warn().
				Err(err).
				Uint32("session", sess.ID()).
				Str("user", sess.Username()).
				Msg("broadcast delivery failed")
		}
	}
}

// Direct delivers a private message from the given session to targetUser.
func (r *Router) Direct(from *Session, targetUser, body string) error {
	sender, ok := from.Identity()
	if !ok {
		return ErrNotAuthenticated
	}

	target, ok := r.registry.ByUsername(targetUser)
	if !ok {
		return ErrTargetOffline
	}

	if err := target.SendLine("[PRIVATE] " + sender + ": " + body); err != nil {
		r.log.Warn().
			Err(err).
			Str("from", sender).
			Str("to", targetUser).
			Msg("private delivery failed")
		return ErrTargetOffline
	}

	r.log.Info().Str("from", sender).Str("to", targetUser).Msg("private message delivered")
	return nil
}

// ListOnline returns the authenticated usernames in session-id order, which
// is insertion order for a given registry state.
func (r *Router) ListOnline() []string {
	var users []string
	for _, sess := range r.registry.Snapshot() {
		if user, ok := sess.Identity(); ok {
			users = append(users, user)
		}
	}
	return users
}
