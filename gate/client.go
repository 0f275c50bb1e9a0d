package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"reading-gate/engagement"
	"reading-gate/gate/domain"
)

// StatusError é devolvido quando o servidor responde fora de 2xx.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gate: status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("gate: status %d", e.Code)
}

// Client fala com os três endpoints do gate mantendo os cookies do visitante.
type Client struct {
	base string
	hc   *http.Client

	mu          sync.Mutex
	tokenNonce  string
	submitNonce string
}

type ConfigResult struct {
	Eligible bool
	Settings domain.Settings
	Preview  bool
}

// DetectorConfig converte as configurações do servidor para o detector.
func (r ConfigResult) DetectorConfig() engagement.Config {
	return engagement.Config{
		DelayBackstop:            r.Settings.DelayBackstop,
		DelayMax:                 r.Settings.DelayMax,
		ScrollDepthPercent:       float64(r.Settings.ScrollDepthPercent),
		MinMeaningfulScrollCount: r.Settings.MinMeaningfulScrollCount,
		ContentSelector:          r.Settings.ContentSelector,
		Preview:                  r.Preview,
	}
}

type SubmitForm struct {
	Email       string
	Consent     bool
	PageURL     string
	PageTitle   string
	Honeypot    string
	Token       string
	Elapsed     time.Duration
	Interaction bool
}

// FormFromSignals monta o formulário com os sinais lidos do detector.
func FormFromSignals(sig engagement.Signals, email string, consent bool) SubmitForm {
	return SubmitForm{
		Email:       email,
		Consent:     consent,
		Token:       sig.Token,
		Elapsed:     sig.Elapsed,
		Interaction: sig.Interaction,
	}
}

type SubmitResult struct {
	Status  int
	Success bool
	Message string
}

// NewClient cria um client para baseURL. Sem hc, usa um http.Client com cookie jar.
func NewClient(baseURL string, hc *http.Client) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		hc.Jar = jar
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), hc: hc}, nil
}

func (c *Client) Config(ctx context.Context, pageURL string) (ConfigResult, error) {
	q := url.Values{"url": {pageURL}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/gate/config?"+q.Encode(), nil)
	if err != nil {
		return ConfigResult{}, err
	}

	var body configResponse
	if err := c.do(req, &body); err != nil {
		return ConfigResult{}, err
	}

	c.mu.Lock()
	c.tokenNonce, c.submitNonce = body.TokenNonce, body.SubmitNonce
	c.mu.Unlock()

	s := body.Settings
	return ConfigResult{
		Eligible: body.Eligible,
		Preview:  s.PreviewMode,
		Settings: domain.Settings{
			DelayBackstop:            time.Duration(s.DelayBackstopMs) * time.Millisecond,
			DelayMax:                 time.Duration(s.DelayMaxMs) * time.Millisecond,
			ScrollDepthPercent:       s.ScrollDepthPercent,
			MinMeaningfulScrollCount: s.MinMeaningfulScrollCount,
			ContentSelector:          s.ContentSelector,
			CookieDurationDays:       s.CookieDurationDays,
			PrivacyPolicyURL:         s.PrivacyPolicyURL,
		},
	}, nil
}

// FetchToken tem a assinatura de engagement.TokenFetcher.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	nonce := c.tokenNonce
	c.mu.Unlock()

	req, err := c.formRequest(ctx, "/gate/token", url.Values{"nonce": {nonce}})
	if err != nil {
		return "", err
	}
	var body tokenResponse
	if err := c.do(req, &body); err != nil {
		return "", err
	}
	return body.Token, nil
}

// Submit envia o formulário. Rejeições do gate (4xx/5xx com corpo JSON) voltam
// como SubmitResult com Success=false, não como erro.
func (c *Client) Submit(ctx context.Context, f SubmitForm) (SubmitResult, error) {
	c.mu.Lock()
	nonce := c.submitNonce
	c.mu.Unlock()

	form := url.Values{
		"nonce":       {nonce},
		"email":       {f.Email},
		"page_url":    {f.PageURL},
		"page_title":  {f.PageTitle},
		"company":     {f.Honeypot},
		"token":       {f.Token},
		"elapsed":     {formatMillis(f.Elapsed)},
		"interaction": {strconv.FormatBool(f.Interaction)},
	}
	if f.Consent {
		form.Set("consent", "1")
	}

	req, err := c.formRequest(ctx, "/gate/submit", form)
	if err != nil {
		return SubmitResult{}, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	var body submitResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return SubmitResult{Status: resp.StatusCode}, fmt.Errorf("decode submit response: %w", err)
	}
	return SubmitResult{Status: resp.StatusCode, Success: body.Success, Message: body.Message}, nil
}

// Cookie devolve o valor de um cookie do gate guardado no jar.
func (c *Client) Cookie(name string) string {
	u, err := url.Parse(c.base + "/")
	if err != nil || c.hc.Jar == nil {
		return ""
	}
	for _, ck := range c.hc.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) formRequest(ctx context.Context, path string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, 1<<20)
	if resp.StatusCode/100 != 2 {
		var msg submitResponse
		_ = json.NewDecoder(body).Decode(&msg)
		return &StatusError{Code: resp.StatusCode, Message: msg.Message}
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}
