package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"ytscrape/batch"
	"ytscrape/browser"
	"ytscrape/captcha"
	"ytscrape/config"
	ythttp "ytscrape/http"
	"ytscrape/secrets"
	"ytscrape/storage"
	"ytscrape/youtube"
)

// app is the wiring shared by every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   storage.Store
	secrets *secrets.Store

	stdin  io.Reader
	stderr io.Writer
}

func newApp(cmd *cobra.Command, g *globalFlags) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, g, cfg); err != nil {
		return nil, err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Log)
	slog.SetDefault(logger)

	sec, err := secrets.Open(cfg.DotenvPath)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		secrets: sec,
		stdin:   cmd.InOrStdin(),
		stderr:  cmd.ErrOrStderr(),
	}, nil
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// applyFlags copies explicitly set global flags over cfg.
func applyFlags(cmd *cobra.Command, g *globalFlags, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Browser.Headless = g.headless
	}
	if flags.Changed("concurrency") {
		cfg.Batch.Concurrency = g.concurrency
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	return cfg.Validate()
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	cfg := &config.Config{Log: lc}
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.SQLitePath != "" {
		return storage.NewSQLiteStore(cfg.SQLitePath)
	}
	return storage.NewJSONStore(cfg.StorePath)
}

// channels returns args, or the configured channels when args is empty.
func (a *app) channels(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(a.cfg.Channels) == 0 {
		return nil, errors.New("no channels given and none configured")
	}
	return a.cfg.Channels, nil
}

// runner builds the batch runner for mode. Details modes need login
// credentials; a missing captcha key only disables the email reveal.
func (a *app) runner(mode youtube.Mode) (*batch.Runner, error) {
	cfg, logger := a.cfg, a.logger
	policy := cfg.ActionPolicy(browser.IsTransient, logger)

	var (
		creds  youtube.Credentials
		solver captcha.Solver
	)
	if mode != youtube.ModeLinks {
		var err error
		if creds.Email, err = a.secrets.Get(secrets.LoginEmail); err != nil {
			return nil, err
		}
		if creds.Password, err = a.secrets.Get(secrets.LoginPassword); err != nil {
			return nil, err
		}
		solver, err = a.solver()
		if err != nil {
			return nil, err
		}
	}

	operator := &youtube.LineOperator{In: a.stdin, Out: a.stderr}
	links := storage.LinkFiles{Dir: cfg.OutputDir}

	return &batch.Runner{
		NewSession: func(ctx context.Context) (browser.Driver, error) {
			return browser.NewSession(ctx, cfg.BrowserOptions(), logger)
		},
		NewScraper: func(drv browser.Driver) *youtube.ChannelScraper {
			s := &youtube.ChannelScraper{
				Driver:       drv,
				Harvest:      cfg.HarvestOptions(),
				ItemSelector: cfg.Harvest.ItemSelector,
				Links:        links,
				Store:        a.store,
				Policy:       policy,
				Logger:       logger,
			}
			if mode != youtube.ModeLinks {
				s.Login = &youtube.LoginFlow{
					Credentials: creds,
					Operator:    operator,
					Policy:      policy,
					Logger:      logger,
				}
				s.Details = &youtube.DetailsExtractor{
					Solver:  solver,
					SiteKey: cfg.Captcha.SiteKey,
					Policy:  policy,
					Logger:  logger,
				}
			}
			return s
		},
		Mode:           mode,
		Concurrency:    cfg.Batch.Concurrency,
		StartInterval:  cfg.Batch.StartInterval.D(),
		ChannelTimeout: cfg.Batch.ChannelTimeout.D(),
		Logger:         logger,
	}, nil
}

// solver returns the 2Captcha solver, or nil when no API key is stored.
func (a *app) solver() (captcha.Solver, error) {
	key, ok, err := a.secrets.Lookup(secrets.CaptchaAPIKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.logger.Warn("no captcha API key; emails will not be revealed",
			slog.String("secret", a.secrets.Prefix+secrets.CaptchaAPIKey))
		return nil, nil
	}
	cc := a.cfg.Captcha
	tc := captcha.NewTwoCaptcha(key, ythttp.New(a.cfg.HTTPConfig(a.logger)), a.logger)
	tc.BaseURL = cc.BaseURL
	tc.InitialDelay = cc.InitialDelay.D()
	tc.PollInterval = cc.PollInterval.D()
	tc.Timeout = cc.Timeout.D()
	return tc, nil
}
