package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/mattn/go-isatty"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/ryanhamamura/tally"
	"github.com/ryanhamamura/tally/h"
	"github.com/ryanhamamura/tally/internal/counter"
	"github.com/ryanhamamura/tally/tallynats"
)

type route struct {
	path, label string
}

var routes = []route{
	{"/buttons", "Built in Go"},
	{"/template", "Template by id"},
	{"/positional", "Template by position"},
	{"/mixed", "Mixed"},
	{"/session", "Kept in session"},
	{"/shared", "Shared by everyone"},
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, errHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := newLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("counter failed")
	}
}

func newLogger(cfg Config) zerolog.Logger {
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	if cfg.Dev || isatty.IsTerminal(os.Stderr.Fd()) {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			With().Timestamp().Logger().Level(level)
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
}

func run(cfg Config, logger zerolog.Logger) error {
	tpl, err := counter.LoadTemplate()
	if err != nil {
		return err
	}

	sm := scs.New()
	if cfg.DB != "" {
		db, err := sql.Open("sqlite3", cfg.DB)
		if err != nil {
			return fmt.Errorf("open session db: %w", err)
		}
		defer db.Close()
		if sm, err = tally.NewSQLiteSessionManager(db, 5*time.Minute); err != nil {
			return err
		}
	}
	sm.Lifetime = cfg.SessionLifetime

	v := tally.New()
	opts := tally.Options{
		DevMode:        cfg.Dev,
		ServerAddress:  cfg.Addr,
		Logger:         &logger,
		DocumentTitle:  cfg.Title,
		SessionManager: sm,
		Plugins:        []tally.Plugin{counter.Tailwind()},
	}

	var ps *tallynats.NATS
	if cfg.NATSDir != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if ps, err = tallynats.New(ctx, cfg.NATSDir); err != nil {
			return err
		}
		err = tallynats.EnsureStream(ps, tallynats.StreamConfig{
			Name:              "COUNTER",
			Subjects:          []string{"counter.>"},
			MaxMsgsPerSubject: 1,
		})
		if err != nil {
			ps.Close()
			return err
		}
		opts.PubSub = ps
	}
	v.Config(opts)

	v.Page("/", func(c *tally.Context) {
		c.View(func() h.H { return index(ps != nil) })
	})
	tally.Mount(v, "/buttons", counter.Program(nil, counter.ViewButtons))
	tally.Mount(v, "/template", counter.Program(tpl, counter.ViewTemplate))
	tally.Mount(v, "/positional", counter.Program(tpl, counter.ViewPositional))
	tally.Mount(v, "/mixed", counter.Program(tpl, counter.ViewMixed))
	tally.Mount(v, "/session", counter.SessionProgram(tpl))
	if ps != nil {
		tally.Mount(v, "/shared", counter.SharedProgram(tpl, ps))
	}
	v.HTTPServeMux().HandleFunc("GET /healthz", healthz(v))

	v.Start()
	return nil
}

func index(shared bool) h.H {
	links := make([]h.H, 0, len(routes))
	for _, r := range routes {
		if r.path == "/shared" && !shared {
			continue
		}
		links = append(links, h.P(h.A(h.Class("ml-4 underline"), h.Href(r.path), h.Text(r.label))))
	}
	return h.Nav(h.Class("mt-4"), h.Group(links...))
}

func healthz(v *tally.V) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "ok %d\n", v.ContextCount())
	}
}
