package tally

import (
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog"
)

func ptr(l zerolog.Level) *zerolog.Level { return &l }

var (
	LogLevelDebug = ptr(zerolog.DebugLevel)
	LogLevelInfo  = ptr(zerolog.InfoLevel)
	LogLevelWarn  = ptr(zerolog.WarnLevel)
	LogLevelError = ptr(zerolog.ErrorLevel)
)

// Plugin is a func that can mutate the given *tally.V app runtime. It is useful to integrate
// JS/CSS UI libraries.
type Plugin func(v *V)

// Options defines configuration options for the tally application
type Options struct {
	// DevMode switches logging to a human readable console writer.
	DevMode bool

	// The http server address. e.g. ':3000'
	ServerAddress string

	// LogLevel sets the minimum log level. nil keeps the default (Info).
	LogLevel *zerolog.Level

	// Logger overrides the default logger entirely. When set, LogLevel and
	// DevMode have no effect on logging.
	Logger *zerolog.Logger

	// The title of the HTML document.
	DocumentTitle string

	// Plugins to extend the capabilities of the application.
	Plugins []Plugin

	// SessionManager enables cookie-based sessions. If set, the handler is
	// wrapped with scs LoadAndSave middleware. Configure the session manager
	// before passing it (lifetime, cookie settings, store, etc).
	SessionManager *scs.SessionManager

	// DatastarContent is the Datastar.js script content served by the app.
	// If nil, pages load DefaultDatastarSrc instead.
	DatastarContent []byte

	// DatastarPath is the URL path where DatastarContent is served.
	// Defaults to "/_datastar.js" if empty.
	DatastarPath string

	// PubSub enables publish/subscribe messaging. Use tallynats.New() for an
	// embedded NATS backend, or supply any PubSub implementation.
	PubSub PubSub

	// ContextTTL is how long a page context may live without an SSE
	// connection before it is reaped. Zero means 30s, negative disables reaping.
	ContextTTL time.Duration

	// ActionRateLimit is the token bucket applied to all actions of a page
	// context. Zero values use the defaults; Rate -1 disables it.
	ActionRateLimit RateLimitConfig
}
