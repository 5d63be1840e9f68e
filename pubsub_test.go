package tally

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPubSub delivers synchronously and counts live subscriptions per subject.
type memPubSub struct {
	mu   sync.Mutex
	subs map[string][]*memSub
}

type memSub struct {
	bus     *memPubSub
	subject string
	fn      func([]byte)
	dropped bool
}

func newMemPubSub() *memPubSub {
	return &memPubSub{subs: make(map[string][]*memSub)}
}

func (m *memPubSub) Publish(subject string, data []byte) error {
	m.mu.Lock()
	var fns []func([]byte)
	for _, s := range m.subs[subject] {
		if !s.dropped {
			fns = append(fns, s.fn)
		}
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(data)
	}
	return nil
}

func (m *memPubSub) Subscribe(subject string, handler func(data []byte)) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &memSub{bus: m, subject: subject, fn: handler}
	m.subs[subject] = append(m.subs[subject], s)
	return s, nil
}

func (m *memPubSub) Close() error { return nil }

func (m *memPubSub) live(subject string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.subs[subject] {
		if !s.dropped {
			n++
		}
	}
	return n
}

func (s *memSub) Unsubscribe() error {
	s.bus.mu.Lock()
	s.dropped = true
	s.bus.mu.Unlock()
	return nil
}

const sharedSubject = "counter.shared"

func TestPublish_ReachesEveryPage(t *testing.T) {
	ps := newMemPubSub()
	v := newTestApp()
	v.Config(Options{PubSub: ps})

	got := map[string]int{}
	for _, id := range []string{"page-a", "page-b"} {
		c := newContext(id, "/", v)
		_, err := Subscribe(c, sharedSubject, func(n int) { got[id] = n })
		require.NoError(t, err)
	}

	sender := newContext("page-c", "/", v)
	require.NoError(t, Publish(sender, sharedSubject, 4))

	assert.Equal(t, map[string]int{"page-a": 4, "page-b": 4}, got)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	ps := newMemPubSub()
	v := newTestApp()
	v.Config(Options{PubSub: ps})
	c := newContext("unsub-ctx", "/", v)

	calls := 0
	sub, err := Subscribe(c, sharedSubject, func(int) { calls++ })
	require.NoError(t, err)
	require.NoError(t, Publish(c, sharedSubject, 1))
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, Publish(c, sharedSubject, 2))

	assert.Equal(t, 1, calls)
	assert.Zero(t, ps.live(sharedSubject))
}

func TestDispose_DropsSubscriptions(t *testing.T) {
	ps := newMemPubSub()
	v := newTestApp()
	v.Config(Options{PubSub: ps})
	c := newContext("dispose-ctx", "/", v)

	_, err := c.Subscribe(sharedSubject, func([]byte) {})
	require.NoError(t, err)
	_, err = c.Subscribe("counter.reset", func([]byte) {})
	require.NoError(t, err)
	require.Len(t, c.subscriptions, 2)

	c.dispose()
	assert.Empty(t, c.subscriptions)
	assert.Zero(t, ps.live(sharedSubject))
	assert.Zero(t, ps.live("counter.reset"))
	assert.NotPanics(t, c.dispose)
}

// sharedTickProgram follows values published on sharedSubject and publishes
// its own.
func sharedTickProgram() Program[int, tick] {
	p := tickProgram()
	p.Effect = func(c *Context, _, next int) {
		_ = Publish(c, sharedSubject, next)
	}
	p.Attach = func(c *Context, apply func(func(int) int)) {
		_, _ = Subscribe(c, sharedSubject, func(n int) {
			apply(func(int) int { return n })
		})
	}
	return p
}

func TestSessionClose_DropsProgramSubscription(t *testing.T) {
	ps := newMemPubSub()
	v := newTestApp()
	v.Config(Options{PubSub: ps})
	Mount(v, "/", sharedTickProgram())

	w := httptest.NewRecorder()
	v.mux.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	c := onlyContext(t, v)
	assert.Equal(t, 1, ps.live(sharedSubject))

	require.NoError(t, ps.Publish(sharedSubject, []byte("9")))
	assert.Contains(t, <-c.patchChan, "<output>9</output>")

	w = httptest.NewRecorder()
	v.mux.ServeHTTP(w, httptest.NewRequest("POST", "/_session/close", strings.NewReader(c.ID())))
	assert.Equal(t, 0, v.ContextCount())
	assert.Zero(t, ps.live(sharedSubject))

	require.NoError(t, ps.Publish(sharedSubject, []byte("10")))
	select {
	case p := <-c.patchChan:
		t.Fatalf("closed page was patched: %s", p)
	default:
	}
}

func TestPubSub_NotConfigured(t *testing.T) {
	c := newContext("noop-ctx", "/", newTestApp())

	assert.ErrorIs(t, Publish(c, sharedSubject, 1), ErrNoPubSub)
	sub, err := Subscribe(c, sharedSubject, func(int) {})
	assert.ErrorIs(t, err, ErrNoPubSub)
	assert.Nil(t, sub)
}

func TestPubSub_IgnoredWhileCheckingPage(t *testing.T) {
	ps := newMemPubSub()
	v := newTestApp()
	v.Config(Options{PubSub: ps})

	var attached []string
	p := sharedTickProgram()
	attach := p.Attach
	p.Attach = func(c *Context, apply func(func(int) int)) {
		attached = append(attached, c.ID())
		attach(c, apply)
	}
	Mount(v, "/", p)

	// Page runs the program once with an empty id at registration
	assert.Equal(t, []string{""}, attached)
	assert.Zero(t, ps.live(sharedSubject))
	assert.NoError(t, newContext("", "/", v).Publish(sharedSubject, []byte("1")))
}
