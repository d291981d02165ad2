package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"studydocs-backend/internal/bootstrap"
	"studydocs-backend/internal/shared/config"
	"studydocs-backend/internal/shared/telemetry"
)

type proxyFunc func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// coldStart builds the app once per container. A failed build is retried on
// the next invocation instead of poisoning the container.
type coldStart struct {
	mu    sync.Mutex
	build func() (proxyFunc, error)
	proxy proxyFunc
}

func (s *coldStart) get() (proxyFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proxy != nil {
		return s.proxy, nil
	}
	proxy, err := s.build()
	if err != nil {
		return nil, err
	}
	s.proxy = proxy
	return proxy, nil
}

func (s *coldStart) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	proxy, err := s.get()
	if err != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{
			"error":      err.Error(),
			"request_id": req.RequestContext.RequestID,
			"route":      req.RouteKey,
		})
		return serverError(), nil
	}
	return proxy(ctx, req)
}

func buildProxy() (proxyFunc, error) {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	app, err := bootstrap.Build(cfg)
	if err != nil {
		return nil, err
	}
	return ginadapter.NewV2(app.Router).ProxyWithContext, nil
}

func serverError() events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(map[string]any{"success": false, "error": "Server error"})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	lambda.Start((&coldStart{build: buildProxy}).handle)
}
