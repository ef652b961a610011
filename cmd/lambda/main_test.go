package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/hirelane/internal/service"
)

func TestHandler_WaitsForBackgroundWork(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	background := service.NewBackground(time.Second, logger)

	var sent atomic.Bool
	proxy := func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		background.Go("send usage email", func(ctx context.Context) {
			time.Sleep(20 * time.Millisecond)
			sent.Store(true)
		})
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK}, nil
	}

	resp, err := newHandler(proxy, background, logger)(context.Background(), events.APIGatewayV2HTTPRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, sent.Load())
}

func TestHandler_ReturnsResponseWhenBackgroundOutlivesDeadline(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	background := service.NewBackground(time.Second, logger)

	release := make(chan struct{})
	defer close(release)
	proxy := func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		background.Go("stuck", func(ctx context.Context) { <-release })
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusAccepted}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp, err := newHandler(proxy, background, logger)(ctx, events.APIGatewayV2HTTPRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}
