package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftroom/internal/api"
	"github.com/debemdeboas/draftroom/internal/auth"
	"github.com/debemdeboas/draftroom/internal/autosave"
	"github.com/debemdeboas/draftroom/internal/channel"
	"github.com/debemdeboas/draftroom/internal/collab"
	"github.com/debemdeboas/draftroom/internal/config"
	"github.com/debemdeboas/draftroom/internal/db"
	"github.com/debemdeboas/draftroom/internal/drafts"
	"github.com/debemdeboas/draftroom/internal/logger"
	"github.com/debemdeboas/draftroom/internal/model"
	"github.com/debemdeboas/draftroom/internal/notify"
	"github.com/debemdeboas/draftroom/internal/render"
	"github.com/debemdeboas/draftroom/internal/repository"
	"github.com/debemdeboas/draftroom/internal/repository/editor"
	"github.com/debemdeboas/draftroom/internal/theme"
)

var errUsage = errors.New("usage")

const usageText = `Usage: draftroom [-config path] <command> [flags]

Commands:
  watch   -draft ID [-draft ID...]   follow collaborators and comments live
  comment -draft ID text...          post a comment, notifying mentioned collaborators
  compose -platform P [-draft ID]    write a post with autosave
`

func main() {
	envErr := godotenv.Load()

	defaultConfig := os.Getenv(config.EnvConfigPath)
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	configPath := flag.String("config", defaultConfig, "Path to the YAML config file")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usageText) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	setLoggers(log)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("No .env file loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Args(), os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
			stop()
			os.Exit(2)
		}
		log.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(l)
	db.SetLogger(l)
	repository.SetLogger(l)
	editor.SetLogger(l)
	api.SetLogger(l)
	auth.SetLogger(l)
	channel.SetLogger(l)
	notify.SetLogger(l)
	collab.SetLogger(l)
	autosave.SetLogger(l)
	drafts.SetLogger(l)
}

// app holds what every command shares.
type app struct {
	cfg      *config.Config
	tokens   auth.TokenSource
	client   *api.Client
	self     model.User
	renderer *render.Renderer
	in       <-chan string
	out      io.Writer
}

// tokenSource refreshes the session through the API when a refresh token is
// configured and uses the static token otherwise.
func tokenSource(cfg config.APIConfig) auth.TokenSource {
	if cfg.RefreshToken == "" {
		return auth.StaticToken(cfg.Token)
	}
	initial := auth.Token{AccessToken: cfg.Token, RefreshToken: cfg.RefreshToken}
	if cfg.ExpiresIn > 0 {
		initial.ExpiresAt = time.Now().Add(cfg.ExpiresIn)
	}
	return auth.NewRefreshingSource(initial, api.NewClient(cfg.BaseURL, nil, cfg.Timeout))
}

func newApp(cfg *config.Config, in io.Reader, out io.Writer) *app {
	tokens := tokenSource(cfg.API)
	return &app{
		cfg:    cfg,
		tokens: tokens,
		client: api.NewClient(cfg.API.BaseURL, tokens, cfg.API.Timeout),
		self: model.User{
			ID:    model.UserID(cfg.User.ID),
			Name:  cfg.User.Name,
			Email: cfg.User.Email,
		},
		renderer: render.New(theme.ByName(cfg.UI.Theme), cfg.UI.Width),
		in:       readLines(in),
		out:      out,
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	a := newApp(cfg, in, out)
	ctx = auth.ContextWithUser(ctx, a.self)

	switch args[0] {
	case "watch":
		return a.watch(ctx, args[1:])
	case "comment":
		return a.comment(ctx, args[1:])
	case "compose":
		return a.compose(ctx, args[1:])
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func (a *app) newChannel(onState func(channel.State)) *channel.Channel {
	return channel.New(channel.Options{
		BaseURL: a.cfg.Channel.BaseURL,
		Backoff: channel.Backoff{
			Base:        a.cfg.Channel.ReconnectBase,
			Max:         a.cfg.Channel.ReconnectMax,
			MaxAttempts: a.cfg.Channel.MaxAttempts,
		},
		OnStateChange: onState,
	})
}

func (a *app) newDispatcher() *notify.Dispatcher {
	return notify.NewDispatcher(a.client, notify.Options{
		Rate:      a.cfg.Notifications.Rate,
		Burst:     a.cfg.Notifications.Burst,
		QueueSize: a.cfg.Notifications.QueueSize,
	})
}

func (a *app) print(s string) {
	fmt.Fprintln(a.out, s)
}
