// Package tally is a small server-driven runtime for live Go web pages.
//
// A page is a Go closure that defines actions and a view. The view is
// rendered on the server, sent to the browser as HTML and kept up to date over
// a Server-Sent Events stream driven by Datastar. Browser events call back into
// registered actions. Programs built from a model, a message type, an update
// function and a view function are mounted with [Mount].
package tally

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/ryanhamamura/tally/h"
)

// DefaultDatastarSrc is where the Datastar client is loaded from unless
// Options.DatastarContent is set.
const DefaultDatastarSrc = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

// V is the root application.
// It manages page routing, user sessions, and SSE connections for live updates.
type V struct {
	cfg                  Options
	mux                  *http.ServeMux
	server               *http.Server
	logger               zerolog.Logger
	contextRegistry      map[string]*Context
	contextRegistryMutex sync.RWMutex
	documentHeadIncludes []h.H
	documentFootIncludes []h.H
	sessionManager       *scs.SessionManager
	pubsub               PubSub
	actionRateLimit      RateLimitConfig
	datastarPath         string
	datastarContent      []byte
	datastarOnce         sync.Once
	reaperStop           chan struct{}
}

func (v *V) logEvent(evt *zerolog.Event, c *Context) *zerolog.Event {
	if c != nil && c.id != "" {
		evt = evt.Str("tally-ctx", c.id)
	}
	return evt
}

func (v *V) logFatal(format string, a ...any) {
	v.logEvent(v.logger.WithLevel(zerolog.FatalLevel), nil).Msgf(format, a...)
}

func (v *V) logErr(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Error(), c).Msgf(format, a...)
}

func (v *V) logWarn(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Warn(), c).Msgf(format, a...)
}

func (v *V) logInfo(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Info(), c).Msgf(format, a...)
}

func (v *V) logDebug(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Debug(), c).Msgf(format, a...)
}

func newConsoleLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().Level(level)
}

// Config overrides the default configuration with the given options.
func (v *V) Config(cfg Options) {
	if cfg.Logger != nil {
		v.logger = *cfg.Logger
	} else if cfg.LogLevel != nil || cfg.DevMode != v.cfg.DevMode {
		level := zerolog.InfoLevel
		if cfg.LogLevel != nil {
			level = *cfg.LogLevel
		}
		if cfg.DevMode {
			v.logger = newConsoleLogger(level)
		} else {
			v.logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
		}
	}
	if cfg.DocumentTitle != "" {
		v.cfg.DocumentTitle = cfg.DocumentTitle
	}
	for _, plugin := range cfg.Plugins {
		if plugin != nil {
			plugin(v)
		}
	}
	v.cfg.DevMode = cfg.DevMode
	if cfg.ServerAddress != "" {
		v.cfg.ServerAddress = cfg.ServerAddress
	}
	if cfg.SessionManager != nil {
		v.sessionManager = cfg.SessionManager
	}
	if cfg.DatastarContent != nil {
		v.datastarContent = cfg.DatastarContent
	}
	if cfg.DatastarPath != "" {
		v.datastarPath = cfg.DatastarPath
	}
	if cfg.PubSub != nil {
		v.pubsub = cfg.PubSub
	}
	if cfg.ContextTTL != 0 {
		v.cfg.ContextTTL = cfg.ContextTTL
	}
	if cfg.ActionRateLimit.Rate != 0 || cfg.ActionRateLimit.Burst != 0 {
		v.actionRateLimit = cfg.ActionRateLimit
	}
}

// AppendToHead appends the given h.H nodes to the head of the base HTML document.
// Useful for including css stylesheets and JS scripts.
func (v *V) AppendToHead(elements ...h.H) {
	for _, el := range elements {
		if el != nil {
			v.documentHeadIncludes = append(v.documentHeadIncludes, el)
		}
	}
}

// AppendToFoot appends the given h.H nodes to the end of the base HTML document body.
func (v *V) AppendToFoot(elements ...h.H) {
	for _, el := range elements {
		if el != nil {
			v.documentFootIncludes = append(v.documentFootIncludes, el)
		}
	}
}

// Page registers a route and its associated page handler. The handler receives a *Context
// that defines state, UI and actions.
//
// Example:
//
//	v.Page("/", func(c *tally.Context) {
//		c.View(func() h.H {
//			return h.H1(h.Text("Hello"))
//		})
//	})
func (v *V) Page(route string, initContextFn func(c *Context)) {
	v.ensureDatastarHandler()
	// check for panics
	func() {
		defer func() {
			if err := recover(); err != nil {
				v.logFatal("failed to register page with init func that panics: %v", err)
				panic(err)
			}
		}()
		c := newContext("", route, v)
		initContextFn(c)
		c.viewFn()()
		c.dispose()
	}()

	v.mux.HandleFunc("GET "+route, func(w http.ResponseWriter, r *http.Request) {
		v.logDebug(nil, "GET %s", r.URL.String())
		id := fmt.Sprintf("%s_/%s", route, genRandID())
		c := newContext(id, route, v)
		c.setReqCtx(r.Context())
		initContextFn(c)
		v.registerCtx(c)

		headElements := []h.H{h.Script(h.Type("module"), h.Src(v.datastarScriptSrc()))}
		headElements = append(headElements, v.documentHeadIncludes...)
		headElements = append(headElements,
			h.Meta(h.Data("signals", fmt.Sprintf("{'tally-ctx':'%s','tally-csrf':'%s'}", id, c.csrfToken))),
			h.Meta(h.Data("init", "@get('/_sse')")),
			h.Meta(h.Data("init", fmt.Sprintf(`window.addEventListener('beforeunload', (evt) => {
			navigator.sendBeacon('/_session/close', '%s');});`, c.id))),
		)

		bodyElements := []h.H{c.viewFn()()}
		bodyElements = append(bodyElements, v.documentFootIncludes...)
		view := h.HTML5(h.HTML5Props{
			Title: v.cfg.DocumentTitle,
			Head:  headElements,
			Body:  bodyElements,
		})
		if err := view.Render(w); err != nil {
			v.logErr(c, "render page failed: %v", err)
		}
	})
}

func (v *V) registerCtx(c *Context) {
	v.contextRegistryMutex.Lock()
	defer v.contextRegistryMutex.Unlock()
	v.contextRegistry[c.id] = c
	v.logDebug(c, "new context added to registry")
	v.logDebug(nil, "number of sessions in registry: %d", len(v.contextRegistry))
}

// ContextCount returns the number of live page contexts.
func (v *V) ContextCount() int {
	v.contextRegistryMutex.RLock()
	defer v.contextRegistryMutex.RUnlock()
	return len(v.contextRegistry)
}

func (v *V) cleanupCtx(c *Context) {
	c.dispose()
	v.unregisterCtx(c)
}

func (v *V) unregisterCtx(c *Context) {
	if c.id == "" {
		v.logErr(c, "unregister ctx failed: ctx contains empty id")
		return
	}
	v.contextRegistryMutex.Lock()
	defer v.contextRegistryMutex.Unlock()
	v.logDebug(c, "ctx removed from registry")
	delete(v.contextRegistry, c.id)
}

func (v *V) getCtx(id string) (*Context, error) {
	v.contextRegistryMutex.RLock()
	defer v.contextRegistryMutex.RUnlock()
	if c, ok := v.contextRegistry[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("ctx '%s' not found", id)
}

func (v *V) startReaper() {
	ttl := v.cfg.ContextTTL
	if ttl < 0 {
		return
	}
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	interval := reaperInterval(ttl)
	stop := make(chan struct{})
	v.reaperStop = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				v.reapOrphanedContexts(ttl)
			}
		}
	}()
}

// reaperInterval checks three times per ttl, but no more than every 5s.
func reaperInterval(ttl time.Duration) time.Duration {
	if interval := ttl / 3; interval > 5*time.Second {
		return interval
	}
	return 5 * time.Second
}

func (v *V) reapOrphanedContexts(ttl time.Duration) {
	now := time.Now()
	v.contextRegistryMutex.RLock()
	var orphans []*Context
	for _, c := range v.contextRegistry {
		if !c.sseConnected.Load() && now.Sub(c.createdAt) > ttl {
			orphans = append(orphans, c)
		}
	}
	v.contextRegistryMutex.RUnlock()

	for _, c := range orphans {
		v.logInfo(c, "reaping orphaned context (no SSE connection after %s)", ttl)
		v.cleanupCtx(c)
	}
}

// Handler returns the root http.Handler, wrapped with the session middleware
// when a SessionManager is configured.
func (v *V) Handler() http.Handler {
	if v.sessionManager != nil {
		return v.sessionManager.LoadAndSave(v.mux)
	}
	return v.mux
}

// Start starts the HTTP server and blocks until a SIGINT or SIGTERM
// signal is received, then performs a graceful shutdown.
func (v *V) Start() {
	v.server = &http.Server{
		Addr:    v.cfg.ServerAddress,
		Handler: v.Handler(),
	}

	v.startReaper()

	errCh := make(chan error, 1)
	go func() {
		errCh <- v.server.ListenAndServe()
	}()

	v.logInfo(nil, "tally started at [%s]", v.cfg.ServerAddress)

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		v.logInfo(nil, "received signal %v, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			v.logger.Fatal().Err(err).Msg("http server failed")
		}
		return
	}

	v.shutdown()
}

// Shutdown gracefully shuts down the server and all contexts.
// Safe for programmatic or test use.
func (v *V) Shutdown() {
	v.shutdown()
}

func (v *V) shutdown() {
	if v.reaperStop != nil {
		close(v.reaperStop)
		v.reaperStop = nil
	}
	v.logInfo(nil, "draining all contexts")
	v.drainAllContexts()

	if v.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := v.server.Shutdown(ctx); err != nil {
			v.logErr(nil, "http server shutdown error: %v", err)
		}
	}

	if v.pubsub != nil {
		if err := v.pubsub.Close(); err != nil {
			v.logErr(nil, "pubsub close error: %v", err)
		}
	}

	v.logInfo(nil, "shutdown complete")
}

func (v *V) drainAllContexts() {
	v.contextRegistryMutex.Lock()
	contexts := make([]*Context, 0, len(v.contextRegistry))
	for _, c := range v.contextRegistry {
		contexts = append(contexts, c)
	}
	v.contextRegistry = make(map[string]*Context)
	v.contextRegistryMutex.Unlock()

	for _, c := range contexts {
		v.logDebug(c, "disposing context")
		c.dispose()
	}
	v.logInfo(nil, "drained %d context(s)", len(contexts))
}

// HTTPServeMux returns the underlying HTTP request multiplexer to enable user extentions and
// middleware.
//
// The returned *http.ServeMux can only be modified during initialization, before calling Start().
func (v *V) HTTPServeMux() *http.ServeMux {
	return v.mux
}

func (v *V) datastarScriptSrc() string {
	if v.datastarContent != nil {
		return v.datastarPath
	}
	return DefaultDatastarSrc
}

func (v *V) ensureDatastarHandler() {
	v.datastarOnce.Do(func() {
		if v.datastarContent == nil {
			return
		}
		v.mux.HandleFunc("GET "+v.datastarPath, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/javascript")
			_, _ = w.Write(v.datastarContent)
		})
	})
}

// New creates a new *V application with default configuration.
func New() *V {
	v := &V{
		mux:             http.NewServeMux(),
		logger:          newConsoleLogger(zerolog.InfoLevel),
		contextRegistry: make(map[string]*Context),
		datastarPath:    "/_datastar.js",
		cfg: Options{
			ServerAddress: ":3000",
			DocumentTitle: "tally",
		},
	}

	v.mux.HandleFunc("GET /_sse", v.handleSSE)
	v.mux.HandleFunc("GET /_action/{id}", v.handleAction)
	v.mux.HandleFunc("POST /_session/close", v.handleSessionClose)
	return v
}

func (v *V) handleSSE(w http.ResponseWriter, r *http.Request) {
	var sigs map[string]any
	_ = datastar.ReadSignals(r, &sigs)
	cID, _ := sigs["tally-ctx"].(string)

	c, err := v.getCtx(cID)
	if err != nil {
		v.logErr(nil, "sse stream failed to start: %v", err)
		http.Error(w, "unknown context", http.StatusNotFound)
		return
	}
	c.setReqCtx(r.Context())

	sse := datastar.NewSSE(w, r, datastar.WithCompression(datastar.WithBrotli(datastar.WithBrotliLevel(5))))

	// use last-event-id to tell if request is a sse reconnect
	sse.Send(datastar.EventTypePatchElements, []string{}, datastar.WithSSEEventId("tally"))

	c.sseConnected.Store(true)
	v.logDebug(c, "SSE connection established")

	go c.Sync()

	for {
		select {
		case <-sse.Context().Done():
			v.logDebug(c, "SSE connection ended")
			v.cleanupCtx(c)
			return
		case <-c.ctxDisposedChan:
			v.logDebug(c, "context disposed, closing SSE")
			return
		case patch := <-c.patchChan:
			if err := sse.PatchElements(patch); err != nil {
				// the stream is gone during shutdown; only report live failures
				if sse.Context().Err() == nil {
					v.logErr(c, "PatchElements failed: %v", err)
				}
			}
		}
	}
}

func (v *V) handleAction(w http.ResponseWriter, r *http.Request) {
	actionID := r.PathValue("id")
	var sigs map[string]any
	_ = datastar.ReadSignals(r, &sigs)
	cID, _ := sigs["tally-ctx"].(string)
	c, err := v.getCtx(cID)
	if err != nil {
		v.logErr(nil, "action '%s' failed: %v", actionID, err)
		http.Error(w, "unknown context", http.StatusNotFound)
		return
	}
	csrfToken, _ := sigs["tally-csrf"].(string)
	if subtle.ConstantTimeCompare([]byte(csrfToken), []byte(c.csrfToken)) != 1 {
		v.logWarn(c, "action '%s' rejected: invalid CSRF token", actionID)
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}
	if c.actionLimiter != nil && !c.actionLimiter.Allow() {
		v.logWarn(c, "action '%s' rate limited", actionID)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}
	c.setReqCtx(r.Context())
	entry, err := c.getAction(actionID)
	if err != nil {
		v.logDebug(c, "action '%s' failed: %v", actionID, err)
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}
	if entry.limiter != nil && !entry.limiter.Allow() {
		v.logWarn(c, "action '%s' rate limited (per-action)", actionID)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			v.logErr(c, "action '%s' failed: %v", actionID, r)
			http.Error(w, "action failed", http.StatusInternalServerError)
		}
	}()

	entry.fn()
}

func (v *V) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		v.logErr(nil, "error reading body: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	c, err := v.getCtx(strings.TrimSpace(string(body)))
	if err != nil {
		v.logErr(nil, "failed to handle session close: %v", err)
		return
	}
	v.logDebug(c, "session close event triggered")
	v.cleanupCtx(c)
}

func genRandID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)[:8]
}

func genCSRFToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
