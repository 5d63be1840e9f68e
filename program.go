package tally

import (
	"sync"

	"github.com/ryanhamamura/tally/h"
	"github.com/ryanhamamura/tally/vdom"
)

// Program is a model-update-view loop. Every page load gets its own model,
// created by Init and owned by that page; browser events carry messages that
// Update folds into the model, after which View is rendered and synced.
type Program[M any, Msg comparable] struct {
	// Init creates the model for a page load.
	Init func(c *Context) M

	// Update returns the next model for msg.
	Update func(m M, msg Msg) M

	// View renders the model. Event handlers on the returned nodes must carry
	// values of type Msg.
	View func(m M) []*vdom.Node

	// Effect, if set, runs after every update with the previous and next model.
	Effect func(c *Context, prev, next M)

	// Attach, if set, runs once per page load and receives apply, which
	// replaces the model from outside the update loop (pubsub, timers) and
	// syncs the page.
	Attach func(c *Context, apply func(func(M) M))
}

// Mount registers p as the page at route.
//
// Each distinct message value found in the view gets one action on the page
// context, created the first time it is rendered. Update and apply calls are
// serialized per page. Effect runs outside that lock, so it may publish to
// subscribers on the same page.
func Mount[M any, Msg comparable](v *V, route string, p Program[M, Msg]) {
	if p.Init == nil || p.Update == nil || p.View == nil {
		panic("tally: program needs Init, Update and View")
	}
	v.Page(route, func(c *Context) {
		(&programRun[M, Msg]{p: p, c: c}).start()
	})
}

type programRun[M any, Msg comparable] struct {
	p Program[M, Msg]
	c *Context

	mu    sync.Mutex
	model M

	triggersMu sync.Mutex
	triggers   map[Msg]*actionTrigger
}

func (r *programRun[M, Msg]) start() {
	r.model = r.p.Init(r.c)
	r.triggers = make(map[Msg]*actionTrigger)
	// the view must be set before Attach: subscriptions may apply right away
	r.c.View(r.render)
	if r.p.Attach != nil {
		r.p.Attach(r.c, r.apply)
	}
}

func (r *programRun[M, Msg]) current() M {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.model
}

func (r *programRun[M, Msg]) dispatch(msg Msg) {
	r.mu.Lock()
	prev := r.model
	next := r.p.Update(prev, msg)
	r.model = next
	r.mu.Unlock()
	if r.p.Effect != nil {
		r.p.Effect(r.c, prev, next)
	}
	r.c.app.logDebug(r.c, "dispatched %v", msg)
	r.c.Sync()
}

func (r *programRun[M, Msg]) apply(f func(M) M) {
	r.mu.Lock()
	r.model = f(r.model)
	r.mu.Unlock()
	r.c.Sync()
}

func (r *programRun[M, Msg]) bind(event string, msg any) h.H {
	m, ok := msg.(Msg)
	if !ok {
		r.c.app.logWarn(r.c, "dropping %q handler: message %T is not %T", event, msg, *new(Msg))
		return nil
	}
	r.triggersMu.Lock()
	t, ok := r.triggers[m]
	if !ok {
		t = r.c.Action(func() { r.dispatch(m) })
		r.triggers[m] = t
	}
	r.triggersMu.Unlock()
	return t.On(event)
}

func (r *programRun[M, Msg]) render() h.H {
	forest := r.p.View(r.current())
	if e := r.c.app.logger.Debug(); e.Enabled() {
		r.c.app.logEvent(e, r.c).Str("nodes", vdom.String(forest)).Msg("view")
	}
	return vdom.Render(forest, r.bind)
}
