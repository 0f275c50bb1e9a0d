package gate

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"reading-gate/gate/application"
	"reading-gate/gate/domain"
	"reading-gate/internal/logger"
)

const (
	ActionToken  = "gate_token"
	ActionSubmit = "gate_submit"

	// HeaderOperator carrega a chave do operador (bypass e preview).
	HeaderOperator = "X-Gate-Operator"
	QueryPreview   = "gate_preview"

	maxFormBytes = 16 << 10
)

type Options struct {
	Pipeline    *application.Pipeline
	Tokens      application.TokenService
	Nonces      domain.NonceIssuer
	Credentials domain.CredentialIssuer
	Eligibility domain.Eligibility
	Settings    domain.Settings
	Stats       domain.StatsStore
	Logger      *zap.Logger

	OperatorKey string
	// TrustProxy habilita X-Forwarded-For/X-Forwarded-Proto.
	TrustProxy bool

	Now   func() time.Time
	NewID func() string
}

type Handler struct {
	opts Options
	ip   KeyFunc
	log  *zap.Logger
}

func NewHandler(opts Options) *Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newUUID
	}
	if opts.Eligibility == nil {
		opts.Eligibility = application.RuleEligibility{Enabled: true}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{opts: opts, ip: ClientIP(opts.TrustProxy), log: log}
}

type settingsResponse struct {
	DelayBackstopMs          int64  `json:"delayBackstopMs"`
	DelayMaxMs               int64  `json:"delayMaxMs"`
	ScrollDepthPercent       int    `json:"scrollDepthPercent"`
	MinMeaningfulScrollCount int    `json:"minMeaningfulScrollCount"`
	ContentSelector          string `json:"contentSelector"`
	CookieDurationDays       int    `json:"cookieDurationDays"`
	PrivacyPolicyURL         string `json:"privacyPolicyUrl"`
	PreviewMode              bool   `json:"previewMode"`
}

type configResponse struct {
	Eligible    bool             `json:"eligible"`
	Settings    settingsResponse `json:"settings"`
	TokenNonce  string           `json:"tokenNonce,omitempty"`
	SubmitNonce string           `json:"submitNonce,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Config responde se a página deve receber o gate e com quais parâmetros.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	operator := h.isOperator(r)
	preview := operator && truthy(r.URL.Query().Get(QueryPreview))
	page := domain.Page{
		URL:      r.URL.Query().Get("url"),
		Unlocked: h.unlocked(r),
		Operator: operator,
		Preview:  preview,
	}

	s := h.opts.Settings
	resp := configResponse{
		Eligible: h.opts.Eligibility.Eligible(r.Context(), page),
		Settings: settingsResponse{
			DelayBackstopMs:          s.DelayBackstop.Milliseconds(),
			DelayMaxMs:               s.DelayMax.Milliseconds(),
			ScrollDepthPercent:       s.ScrollDepthPercent,
			MinMeaningfulScrollCount: s.MinMeaningfulScrollCount,
			ContentSelector:          s.ContentSelector,
			CookieDurationDays:       s.CookieDurationDays,
			PrivacyPolicyURL:         s.PrivacyPolicyURL,
			PreviewMode:              preview,
		},
	}

	if resp.Eligible && h.opts.Nonces != nil {
		var err error
		if resp.TokenNonce, err = h.opts.Nonces.IssueNonce(ActionToken); err == nil {
			resp.SubmitNonce, err = h.opts.Nonces.IssueNonce(ActionSubmit)
		}
		if err != nil {
			h.log.Error("issue nonce failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, submitResponse{Message: domain.MessageGeneric})
			return
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

// Token emite o segredo efêmero do visitante e garante os cookies de identidade.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Message: domain.MessageGeneric})
		return
	}
	if !h.nonceOK(r, ActionToken) {
		h.rejectNonce(w, r)
		return
	}

	now := h.opts.Now()
	id := ensureIdentity(w, r, IsSecure(r, h.opts.TrustProxy), now, h.opts.NewID)

	token, err := h.opts.Tokens.Issue(r.Context(), id.VisitorID)
	if err != nil {
		h.log.Error("issue gate token failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, submitResponse{Message: domain.MessageGeneric})
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// Submit decodifica o formulário, roda o pipeline e traduz a decisão.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Message: domain.MessageGeneric})
		return
	}
	if !h.nonceOK(r, ActionSubmit) {
		h.rejectNonce(w, r)
		return
	}

	now := h.opts.Now()
	secure := IsSecure(r, h.opts.TrustProxy)
	sub := domain.Submission{
		Identity:    ensureIdentity(w, r, secure, now, h.opts.NewID),
		IP:          h.ip(r),
		Secure:      secure,
		Email:       r.PostForm.Get("email"),
		Consent:     truthy(r.PostForm.Get("consent")),
		PageURL:     r.PostForm.Get("page_url"),
		PageTitle:   r.PostForm.Get("page_title"),
		Honeypot:    r.PostForm.Get("company"),
		Token:       r.PostForm.Get("token"),
		Elapsed:     parseMillis(r.PostForm.Get("elapsed")),
		Interaction: truthy(r.PostForm.Get("interaction")),
	}

	out, err := h.opts.Pipeline.Submit(r.Context(), sub)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", formatSeconds(application.CounterTTL))
		}
		writeJSON(w, status, submitResponse{Message: msg})
		return
	}

	http.SetCookie(w, unlockCookie(out.Credential, secure, now))
	if out.Lead != nil {
		h.log.Info("lead captured",
			zap.String("lead_id", out.Lead.ID),
			zap.String("email", logger.MaskEmail(out.Lead.Email)),
		)
	}
	writeJSON(w, http.StatusOK, submitResponse{Success: true, Message: domain.MessageSuccess})
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// statusFor é o único ponto que traduz uma rejeição em status HTTP.
func statusFor(err error) (int, string) {
	rej, ok := domain.AsRejection(err)
	if !ok {
		return http.StatusInternalServerError, domain.MessageGeneric
	}
	switch {
	case rej.Cause == domain.CauseRateLimited:
		return http.StatusTooManyRequests, rej.Message()
	case rej.Cause == domain.CauseBadNonce:
		return http.StatusForbidden, rej.Message()
	case rej.Kind == domain.KindStorage:
		return http.StatusInternalServerError, rej.Message()
	default:
		return http.StatusBadRequest, rej.Message()
	}
}

func (h *Handler) nonceOK(r *http.Request, action string) bool {
	if h.opts.Nonces == nil {
		return true
	}
	return h.opts.Nonces.VerifyNonce(action, r.PostForm.Get("nonce"))
}

// rejectNonce responde 403 sem tocar nos contadores de abuso.
func (h *Handler) rejectNonce(w http.ResponseWriter, r *http.Request) {
	rej := domain.Reject(domain.KindAbuse, domain.CauseBadNonce, nil)
	h.log.Info("request rejected", zap.String("cause", string(rej.Cause)), zap.String("path", r.URL.Path))
	if h.opts.Stats != nil {
		_ = h.opts.Stats.Record(r.Context(), domain.StatsEvent{
			Cause:  rej.Cause,
			Method: r.Method,
			Path:   r.URL.Path,
			At:     h.opts.Now(),
		})
	}
	status, msg := statusFor(rej)
	writeJSON(w, status, submitResponse{Message: msg})
}

func (h *Handler) isOperator(r *http.Request) bool {
	key := h.opts.OperatorKey
	if key == "" {
		return false
	}
	got := r.Header.Get(HeaderOperator)
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1
}

func (h *Handler) unlocked(r *http.Request) bool {
	v := cookieValue(r, CookieUnlocked)
	if v == "" {
		return false
	}
	if h.opts.Credentials == nil {
		return true
	}
	return h.opts.Credentials.VerifyUnlock(v)
}

// maxElapsed é o teto do tempo decorrido; acima dele o valor é saturado.
const maxElapsed = 365 * 24 * time.Hour

// parseMillis lê o tempo decorrido enviado pelo cliente em milissegundos.
// Valores inválidos ou negativos viram zero (e reprovam no teste de tempo);
// valores enormes saturam em maxElapsed.
func parseMillis(v string) time.Duration {
	ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if errors.Is(err, strconv.ErrRange) && ms > 0 {
		return maxElapsed
	}
	if err != nil || ms < 0 {
		return 0
	}
	if ms > maxElapsed.Milliseconds() {
		return maxElapsed
	}
	return time.Duration(ms) * time.Millisecond
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
