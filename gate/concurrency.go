package gate

import (
	"errors"
	"net/http"
	"time"

	"reading-gate/gate/application"
	"reading-gate/gate/domain"
	"reading-gate/gate/infra"
)

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
	Stats          domain.StatsStore
	// Pool substitui o pool criado a partir de Max (testes, pool compartilhado).
	Pool domain.SlotPool
}

// ConcurrencyMiddleware limita quantas submissões rodam ao mesmo tempo.
// Max <= 0 sem Pool desliga o limite. Sem vaga no prazo a resposta é 503;
// cliente que desistiu na fila não conta como sobrecarga.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	pool := opts.Pool
	if pool == nil {
		if opts.Max <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		pool = infra.NewSubmitPool(opts.Max)
	}

	slots := application.SubmitSlots{Pool: pool, AcquireTimeout: opts.AcquireTimeout}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := slots.Acquire(r.Context())
			if err != nil {
				if errors.Is(err, domain.ErrOverloaded) && opts.Stats != nil {
					_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
						Cause:  domain.CauseOverloaded,
						Method: r.Method,
						Path:   r.URL.Path,
						At:     time.Now(),
					})
				}
				writeJSON(w, http.StatusServiceUnavailable, submitResponse{Message: domain.MessageGeneric})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
