package gate

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"reading-gate/gate/application"
	"reading-gate/gate/domain"
	"reading-gate/internal/logger"
)

type ThrottleOptions struct {
	Store              domain.BucketStore
	Stats              domain.StatsStore
	KeyFn              KeyFunc
	TrustXForwardedFor bool
	Now                func() time.Time
}

// ThrottleMiddleware aplica o bucket de (ep, cliente) na frente de um endpoint.
// Sem Store, é um passthrough. A recusa é 429 com Retry-After até a próxima ficha.
func ThrottleMiddleware(opts ThrottleOptions, ep domain.Endpoint) func(next http.Handler) http.Handler {
	if opts.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ClientIP(opts.TrustXForwardedFor)
	}

	svc := application.Throttle{Store: opts.Store, Now: opts.Now}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dec := svc.Decide(ep, opts.KeyFn(r))
			if !dec.Allowed {
				if opts.Stats != nil {
					_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
						Cause:  domain.CauseThrottled,
						Method: r.Method,
						Path:   r.URL.Path,
						At:     time.Now(),
					})
				}
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				writeJSON(w, http.StatusTooManyRequests, submitResponse{Message: domain.MessageGeneric})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// AccessLog registra método, caminho, status e duração de cada requisição.
// O IP sai mascarado.
func AccessLog(log *zap.Logger, keyFn KeyFunc) func(next http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if keyFn == nil {
		keyFn = ClientIP(false)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("ip", logger.MaskIP(keyFn(r))),
			)
		})
	}
}
