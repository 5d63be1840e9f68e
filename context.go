package tally

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ryanhamamura/tally/h"
)

// ErrNoPubSub is returned by Publish and Subscribe when the app has no PubSub
// backend configured.
var ErrNoPubSub = errors.New("tally: no pubsub configured")

// Context is the living bridge between Go and the browser for one page load.
//
// It holds runtime state, defines actions and defines UI through View.
type Context struct {
	id              string
	route           string
	app             *V
	view            func() h.H
	patchChan       chan string
	actionRegistry  map[string]actionEntry
	mu              sync.RWMutex
	ctxDisposedChan chan struct{}
	disposeOnce     sync.Once
	reqCtx          context.Context
	csrfToken       string
	createdAt       time.Time
	sseConnected    atomic.Bool
	actionLimiter   *rate.Limiter
	subscriptions   []Subscription
}

// ID returns the context id. It is empty while a page is being checked at
// registration time.
func (c *Context) ID() string {
	return c.id
}

// Log returns the app logger tagged with this context id.
func (c *Context) Log() *zerolog.Logger {
	l := c.app.logger.With().Str("tally-ctx", c.id).Logger()
	return &l
}

// View defines the UI rendered by this context.
//
// Changes to state can be pushed live with Sync().
func (c *Context) View(f func() h.H) {
	if f == nil {
		panic("nil viewfn")
	}
	c.mu.Lock()
	c.view = func() h.H { return h.Div(h.ID(c.id), f()) }
	c.mu.Unlock()
}

func (c *Context) viewFn() func() h.H {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// Action registers an event handler and returns a trigger to that event that
// that can be added to the view fn as any other h element.
//
// Example:
//
//	n := 0
//	increment := c.Action(func(){
//		n++
//		c.Sync()
//	})
//
//	c.View(func() h.H {
//		return h.Div(
//			h.P(h.Textf("Value of n: %d", n)),
//			h.Button(h.Text("Increment n"), increment.OnClick()),
//		)
//	})
func (c *Context) Action(f func(), opts ...ActionOption) *actionTrigger {
	id := genRandID()
	if f == nil {
		c.app.logErr(c, "failed to bind action '%s' to context: nil func", id)
		return nil
	}
	entry := actionEntry{fn: f}
	for _, opt := range opts {
		opt(&entry)
	}
	c.mu.Lock()
	c.actionRegistry[id] = entry
	c.mu.Unlock()
	return &actionTrigger{id}
}

func (c *Context) getAction(id string) (actionEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.actionRegistry[id]; ok {
		return e, nil
	}
	return actionEntry{}, fmt.Errorf("action '%s' not found", id)
}

// sendPatch queues a patch on this *Context sse stream. If the sse is closed or queue is full, the patch
// is dropped to prevent runtime blocks.
func (c *Context) sendPatch(p string) {
	select {
	case c.patchChan <- p:
	default: // buffer full - drop patch without blocking
	}
}

// Sync pushes the current view to the browser immediately over the live SSE
// event stream.
func (c *Context) Sync() {
	view := c.viewFn()
	if view == nil {
		return
	}
	var b bytes.Buffer
	if err := view().Render(&b); err != nil {
		c.app.logErr(c, "sync view failed: %v", err)
		return
	}
	c.sendPatch(b.String())
}

// Session returns the session for the request currently served by this
// context. Session data persists across page views for the same browser.
// Returns a no-op session if no SessionManager is configured.
func (c *Context) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Session{
		ctx:     c.reqCtx,
		manager: c.app.sessionManager,
	}
}

func (c *Context) setReqCtx(ctx context.Context) {
	c.mu.Lock()
	c.reqCtx = ctx
	c.mu.Unlock()
}

// Publish sends data on subject through the app's PubSub backend.
func (c *Context) Publish(subject string, data []byte) error {
	if c.app.pubsub == nil {
		return ErrNoPubSub
	}
	if c.id == "" {
		return nil
	}
	return c.app.pubsub.Publish(subject, data)
}

// Subscribe registers handler for messages on subject. The subscription is
// dropped when the context is disposed.
func (c *Context) Subscribe(subject string, handler func(data []byte)) (Subscription, error) {
	if c.app.pubsub == nil {
		return nil, ErrNoPubSub
	}
	if c.id == "" {
		return nil, nil
	}
	sub, err := c.app.pubsub.Subscribe(subject, handler)
	if err != nil {
		return nil, fmt.Errorf("subscribe %q: %w", subject, err)
	}
	c.mu.Lock()
	c.subscriptions = append(c.subscriptions, sub)
	c.mu.Unlock()
	return sub, nil
}

func (c *Context) unsubscribeAll() {
	c.mu.Lock()
	subs := c.subscriptions
	c.subscriptions = nil
	c.mu.Unlock()
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			c.app.logWarn(c, "unsubscribe failed: %v", err)
		}
	}
}

// dispose releases everything tied to the context. Safe to call more than once.
func (c *Context) dispose() {
	c.disposeOnce.Do(func() {
		c.unsubscribeAll()
		close(c.ctxDisposedChan)
	})
}

func newContext(id string, route string, v *V) *Context {
	if v == nil {
		panic("create context failed: app pointer is nil")
	}

	return &Context{
		id:              id,
		route:           route,
		app:             v,
		actionRegistry:  make(map[string]actionEntry),
		patchChan:       make(chan string, 1),
		ctxDisposedChan: make(chan struct{}),
		csrfToken:       genCSRFToken(),
		createdAt:       time.Now(),
		actionLimiter:   newLimiter(v.actionRateLimit, defaultActionRate, defaultActionBurst),
	}
}
