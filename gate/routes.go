package gate

import (
	"net/http"

	"go.uber.org/zap"

	"reading-gate/gate/domain"
)

type RouteOptions struct {
	Throttle    ThrottleOptions
	Concurrency ConcurrencyOptions
	Logger      *zap.Logger
	// Metrics, quando não nil, é servido em GET /metrics.
	Metrics http.Handler
}

// Routes monta o mux do gate. Cada endpoint tem o próprio bucket de throttle;
// o limite de concorrência vale só para a submissão.
func (h *Handler) Routes(opts RouteOptions) http.Handler {
	throttle := func(ep domain.Endpoint, next http.Handler) http.Handler {
		return ThrottleMiddleware(opts.Throttle, ep)(next)
	}
	bounded := ConcurrencyMiddleware(opts.Concurrency)

	mux := http.NewServeMux()
	mux.Handle("GET /gate/config", throttle(domain.EndpointConfig, http.HandlerFunc(h.Config)))
	mux.Handle("POST /gate/token", throttle(domain.EndpointToken, http.HandlerFunc(h.Token)))
	mux.Handle("POST /gate/submit", throttle(domain.EndpointSubmit, bounded(http.HandlerFunc(h.Submit))))
	mux.HandleFunc("GET /healthz", h.Healthz)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	keyFn := opts.Throttle.KeyFn
	if keyFn == nil {
		keyFn = h.ip
	}
	return AccessLog(opts.Logger, keyFn)(mux)
}
