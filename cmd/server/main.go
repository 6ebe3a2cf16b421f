package main

import (
	"context"
	"log/slog"
	"os"

	"evently/config"
	"evently/internal/delivery"
	"evently/internal/delivery/http"
	"evently/internal/delivery/http/middleware"
	"evently/internal/delivery/http/router/handler"
	deliverymiddleware "evently/internal/delivery/middleware"
	"evently/internal/infra/auth"
	logs "evently/internal/infra/log"
	"evently/internal/infra/persistence/postgres"
	"evently/internal/infra/pubsub"
	"evently/internal/infra/sentry"
	"evently/internal/usecase"
	"evently/internal/usecase/impl"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

type seedAdminParams struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	UserUC usecase.UserUsecase
	Logger *slog.Logger
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			seedAdmin,
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Options(
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
			postgres.New,
			fx.Annotate(
				sentry.New,
				fx.As(new(middleware.ErrorReporter)),
			),
		),
		pubsub.Module,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewUserRepository,
			postgres.NewRepositoryFactory,
			postgres.NewTransactionManager,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewPasswordHasher,
			auth.NewJWTService,
			auth.NewRefreshTokenProvider,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewRefreshTokenService,
			impl.NewUserService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
			middleware.NewErrorMiddleware,
			deliverymiddleware.NewRequestIDMiddleware,
			deliverymiddleware.NewLoggerMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
			handler.NewUserHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				http.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

// seedAdmin creates the configured bootstrap admin before the servers start.
func seedAdmin(params seedAdminParams) {
	admin := params.Config.Auth.BootstrapAdmin
	if !admin.Enabled() {
		return
	}

	params.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			user, err := params.UserUC.EnsureAdmin(ctx, &usecase.RegisterInput{
				Username: admin.Username,
				Email:    admin.Email,
				Password: admin.Password,
			})
			if err != nil {
				return errors.Wrap(err, "failed to seed bootstrap admin")
			}

			params.Logger.Info("Bootstrap admin ready", slog.String("username", user.Username), slog.String("role", user.Role.String()))

			return nil
		},
	})
}

func startServer(ctx context.Context, params startServerParams) {
	params.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for _, delivery := range params.Deliveries {
				go func() {
					if err := delivery.Serve(ctx); err != nil {
						slog.Error("Failed to start server", slog.Any("error", err))
						os.Exit(1)
					}
				}()
			}

			return nil
		},
	})
}
