package tally

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanhamamura/tally/vdom"
)

type tick int

const (
	up tick = iota
	down
)

func tickProgram() Program[int, tick] {
	return Program[int, tick]{
		Init: func(*Context) int { return 0 },
		Update: func(n int, msg tick) int {
			if msg == up {
				return n + 1
			}
			return n - 1
		},
		View: func(n int) []*vdom.Node {
			return []*vdom.Node{
				vdom.El("button", vdom.ID("up"), vdom.OnClick(up), vdom.Text("+")),
				vdom.El("button", vdom.ID("down"), vdom.OnClick(down), vdom.Text("-")),
				vdom.El("button", vdom.ID("again"), vdom.OnClick(up), vdom.Text("+")),
				vdom.El("i", vdom.ID("bogus"), vdom.OnClick("not a tick")),
				vdom.El("output", vdom.Text(strconv.Itoa(n))),
			}
		},
	}
}

func onlyContext(t *testing.T, v *V) *Context {
	t.Helper()
	v.contextRegistryMutex.RLock()
	defer v.contextRegistryMutex.RUnlock()
	require.Len(t, v.contextRegistry, 1)
	for _, c := range v.contextRegistry {
		return c
	}
	return nil
}

func TestMount_RendersAndDispatches(t *testing.T) {
	v := newTestApp()
	var effects [][2]int
	p := tickProgram()
	p.Effect = func(_ *Context, prev, next int) { effects = append(effects, [2]int{prev, next}) }
	Mount(v, "/", p)

	w := httptest.NewRecorder()
	v.mux.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<output>0</output>")
	assert.NotContains(t, body, `id="bogus" data-on`)

	ids := regexp.MustCompile(`id="(up|down|again)" data-on:click="@get\(&#39;/_action/([0-9a-f]+)&#39;\)"`).FindAllStringSubmatch(body, -1)
	require.Len(t, ids, 3)
	actions := map[string]string{}
	for _, m := range ids {
		actions[m[1]] = m[2]
	}
	// equal messages share one action
	assert.Equal(t, actions["up"], actions["again"])
	assert.NotEqual(t, actions["up"], actions["down"])

	c := onlyContext(t, v)
	for _, a := range []string{"up", "up", "again", "down"} {
		w := httptest.NewRecorder()
		v.mux.ServeHTTP(w, actionRequest(c, actions[a], c.csrfToken))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 2}}, effects)
	select {
	case patch := <-c.patchChan:
		assert.Contains(t, patch, "<output>")
	default:
		t.Fatal("expected a patch after dispatch")
	}
	c.Sync()
	assert.Contains(t, <-c.patchChan, "<output>2</output>")
}

func TestMount_AttachAppliesExternalChanges(t *testing.T) {
	v := newTestApp()
	var apply func(func(int) int)
	p := tickProgram()
	p.Attach = func(c *Context, a func(func(int) int)) {
		if c.ID() != "" {
			apply = a
		}
	}
	Mount(v, "/", p)

	w := httptest.NewRecorder()
	v.mux.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	require.NotNil(t, apply)

	apply(func(int) int { return 42 })
	c := onlyContext(t, v)
	assert.Contains(t, <-c.patchChan, "<output>42</output>")
}

func TestMount_AttachCanApplyImmediately(t *testing.T) {
	v := newTestApp()
	p := tickProgram()
	p.Attach = func(c *Context, apply func(func(int) int)) {
		if c.ID() != "" {
			apply(func(int) int { return 5 })
		}
	}
	Mount(v, "/", p)

	w := httptest.NewRecorder()
	v.mux.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<output>5</output>")

	c := onlyContext(t, v)
	select {
	case patch := <-c.patchChan:
		assert.Contains(t, patch, "<output>5</output>")
	default:
		t.Fatal("apply during Attach should sync the page")
	}
}

func TestMount_RequiresFunctions(t *testing.T) {
	assert.Panics(t, func() {
		Mount(newTestApp(), "/", Program[int, tick]{})
	})
}
