// Package sentry reports unexpected server errors to Sentry.
package sentry

import (
	"context"
	"log/slog"
	"time"

	"evently/config"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const flushTimeout = 2 * time.Second

// Reporter captures errors on its own hub. A Reporter without a DSN drops everything.
type Reporter struct {
	hub *sentry.Hub
}

// Params defines the parameters required for the reporter
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New creates the Reporter and flushes buffered events on shutdown.
func New(params Params) (*Reporter, error) {
	cfg := params.Config.Sentry
	if cfg == nil || cfg.DSN == "" {
		params.Logger.Info("Sentry not configured, error reporting disabled")

		return &Reporter{}, nil
	}

	environment := cfg.Environment
	if environment == "" {
		environment = params.Config.Env.Env
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		ServerName:       params.Config.Env.ServiceName,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sentry client")
	}

	hub := sentry.NewHub(client, sentry.NewScope())

	params.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if !hub.Flush(flushTimeout) {
				params.Logger.WarnContext(ctx, "Sentry flush timed out")
			}

			return nil
		},
	})

	return &Reporter{hub: hub}, nil
}

// Enabled reports whether errors are actually sent.
func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// CaptureError sends err with the given tags. It is safe on a disabled Reporter.
func (r *Reporter) CaptureError(_ context.Context, err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}

	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}
