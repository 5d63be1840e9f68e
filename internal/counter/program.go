package counter

import (
	"encoding/json"
	"errors"

	"github.com/ryanhamamura/tally"
	"github.com/ryanhamamura/tally/h"
	"github.com/ryanhamamura/tally/tallynats"
	"github.com/ryanhamamura/tally/vdom"
)

const (
	// SessionKey is where the session-backed counter keeps its value.
	SessionKey = "counter"

	// SharedSubject carries the shared counter value as a JSON number.
	SharedSubject = "counter.shared"
)

// Program returns a counter program with a fresh model per page load,
// rendered by view. t may be nil for views that don't use a template.
func Program(t *vdom.Template, view func(Model) []*vdom.Node) tally.Program[Model, Msg] {
	return tally.Program[Model, Msg]{
		Init:   func(*tally.Context) Model { return Model{Template: t} },
		Update: Update,
		View:   view,
	}
}

// SessionProgram keeps the counter in the browser session, so it survives
// reloads. A counter back at zero is removed from the session.
func SessionProgram(t *vdom.Template) tally.Program[Model, Msg] {
	p := Program(t, ViewTemplate)
	p.Init = func(c *tally.Context) Model {
		return Model{Val: c.Session().GetInt(SessionKey), Template: t}
	}
	p.Effect = func(c *tally.Context, _, next Model) {
		if next.Val == 0 {
			c.Session().Delete(SessionKey)
			return
		}
		c.Session().Set(SessionKey, next.Val)
	}
	return p
}

// History returns the latest value retained for a subject, or an error
// wrapping tallynats.ErrNoMessage. *tallynats.NATS implements it.
type History interface {
	Last(subject string) ([]byte, error)
}

// SharedProgram is one counter shared by every open page. Each change is
// published on SharedSubject and applied by all subscribers; a page starts
// from the last value in history, if any.
func SharedProgram(t *vdom.Template, history History) tally.Program[Model, Msg] {
	p := Program(t, ViewTemplate)
	p.Init = func(c *tally.Context) Model {
		return Model{Val: lastShared(c, history), Template: t}
	}
	p.Effect = func(c *tally.Context, _, next Model) {
		if err := tally.Publish(c, SharedSubject, next.Val); err != nil {
			c.Log().Error().Err(err).Msg("publish shared counter")
		}
	}
	p.Attach = func(c *tally.Context, apply func(func(Model) Model)) {
		_, err := tally.Subscribe(c, SharedSubject, func(val int) {
			apply(func(m Model) Model {
				m.Val = val
				return m
			})
		})
		if err != nil {
			c.Log().Error().Err(err).Msg("subscribe shared counter")
		}
	}
	return p
}

func lastShared(c *tally.Context, history History) int {
	if history == nil {
		return 0
	}
	data, err := history.Last(SharedSubject)
	if err != nil {
		if !errors.Is(err, tallynats.ErrNoMessage) {
			c.Log().Warn().Err(err).Msg("read shared counter history")
		}
		return 0
	}
	var val int
	if err := json.Unmarshal(data, &val); err != nil {
		c.Log().Warn().Err(err).Msg("decode shared counter history")
		return 0
	}
	return val
}

// Tailwind loads the Tailwind CSS browser build so the counter's utility
// classes take effect.
func Tailwind() tally.Plugin {
	return func(v *tally.V) {
		v.AppendToHead(h.Script(h.Src("https://cdn.tailwindcss.com")))
	}
}
