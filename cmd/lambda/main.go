// Command lambda serves the API from AWS Lambda behind an HTTP API gateway.
// Migrations are applied by hirelanectl, not at cold start.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/DukeRupert/hirelane/internal"
	"github.com/DukeRupert/hirelane/internal/app"
)

type proxyFunc func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

type waiter interface {
	Wait(ctx context.Context) error
}

// newHandler drains background work before each invocation returns, since
// Lambda freezes the environment as soon as the handler does.
func newHandler(proxy proxyFunc, background waiter, logger *slog.Logger) proxyFunc {
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		resp, err := proxy(ctx, req)
		if werr := background.Wait(ctx); werr != nil {
			logger.Error("background work did not finish before the deadline", "error", werr)
		}
		return resp, err
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	db, err := app.OpenDB(ctx, cfg.DatabaseUrl)
	if err != nil {
		return err
	}
	// Lambda freezes idle environments, so keep the pool small.
	db.SetMaxOpenConns(4)

	application, err := app.New(cfg, db, logger)
	if err != nil {
		return err
	}

	router, err := application.Handler()
	if err != nil {
		return err
	}

	logger.Info("Lambda handler ready", "env", cfg.Env)
	lambda.Start(newHandler(httpadapter.NewV2(router).ProxyWithContext, application.Background, logger))
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
