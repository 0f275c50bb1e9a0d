package gate

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading-gate/engagement"
	"reading-gate/gate/application"
	"reading-gate/gate/domain"
	"reading-gate/gate/infra"
)

type articleView struct{ y int }

func (v *articleView) ScrollY() int                      { return v.y }
func (v *articleView) InnerHeight() int                  { return 800 }
func (v *articleView) DocumentHeight() int               { return 5000 }
func (v *articleView) Container(string) (int, int, bool) { return 0, 0, false }

func newE2EServer(t *testing.T) (*httptest.Server, *infra.MemoryLeadStore, *infra.JWTSigner) {
	t.Helper()
	store := infra.NewMemoryStore()
	leads := infra.NewMemoryLeadStore()
	signer, err := infra.NewJWTSigner(testSecret)
	require.NoError(t, err)
	hasher := infra.NewKeyedHasher(testSecret)
	tokens := application.TokenService{Store: store}

	h := NewHandler(Options{
		Pipeline: &application.Pipeline{
			Tokens:      tokens,
			Limiter:     application.NewRateLimiter(store, hasher),
			Dedup:       application.Deduplicator{Store: store, Hasher: hasher},
			Leads:       leads,
			Credentials: signer,
		},
		Tokens:      tokens,
		Nonces:      signer,
		Credentials: signer,
		Eligibility: application.RuleEligibility{Enabled: true},
		Settings:    domain.DefaultSettings(),
	})
	srv := httptest.NewServer(h.Routes(RouteOptions{
		Throttle: ThrottleOptions{Store: infra.NewThrottleStore(map[domain.Endpoint]domain.Rate{
			domain.EndpointConfig: {PerSecond: 50, Burst: 100},
			domain.EndpointToken:  {PerSecond: 50, Burst: 100},
			domain.EndpointSubmit: {PerSecond: 50, Burst: 100},
		})},
	}))
	t.Cleanup(srv.Close)
	return srv, leads, signer
}

func TestEndToEnd_ScrollRevealSubmit(t *testing.T) {
	srv, leads, signer := newE2EServer(t)
	ctx := context.Background()

	client, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	cfg, err := client.Config(ctx, "https://blog.example/long-read")
	require.NoError(t, err)
	require.True(t, cfg.Eligible)

	clock := engagement.NewManualClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	view := &articleView{}
	var revealed []engagement.Reveal
	det := engagement.NewDetector(cfg.DetectorConfig(), view,
		engagement.WithClock(clock),
		engagement.WithDispatcher(func(f func()) { f() }),
		engagement.WithTokenFetcher(client.FetchToken),
		engagement.WithReveal(func(r engagement.Reveal) { revealed = append(revealed, r) }),
	)
	det.Start()

	// dois scrolls significativos; o segundo passa de 30% do documento
	clock.Advance(time.Second)
	view.y = 400
	det.OnScroll(engagement.Sample{ScrollY: view.y})
	require.False(t, det.State().ModalShown)

	clock.Advance(time.Second)
	view.y = 900
	det.OnScroll(engagement.Sample{ScrollY: view.y})
	require.Equal(t, engagement.Shown, det.Phase())
	require.Len(t, revealed, 1)
	require.NoError(t, revealed[0].TokenErr)
	require.NotEmpty(t, revealed[0].Token)

	clock.Advance(3 * time.Second)
	det.OnKey("a", false)

	form := FormFromSignals(det.Signals(), "a@b.com", true)
	form.PageURL = "https://blog.example/long-read"
	res, err := client.Submit(ctx, form)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.MessageSuccess, res.Message)

	assert.True(t, signer.VerifyUnlock(client.Cookie(CookieUnlocked)))
	require.Len(t, leads.Leads(), 1)
	assert.Equal(t, "a@b.com", leads.Leads()[0].Email)

	// desbloqueado: a próxima página não recebe o gate
	next, err := client.Config(ctx, "https://blog.example/another")
	require.NoError(t, err)
	assert.False(t, next.Eligible)
}

func TestEndToEnd_DuplicateEmailUnlocksWithoutNewLead(t *testing.T) {
	srv, leads, _ := newE2EServer(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		client, err := NewClient(srv.URL, nil)
		require.NoError(t, err)
		_, err = client.Config(ctx, "https://blog.example/post")
		require.NoError(t, err)
		token, err := client.FetchToken(ctx)
		require.NoError(t, err)

		res, err := client.Submit(ctx, SubmitForm{
			Email:       "Same@Example.com",
			Consent:     true,
			Token:       token,
			Elapsed:     4 * time.Second,
			Interaction: true,
		})
		require.NoError(t, err)
		require.True(t, res.Success, "submission %d: %s", i, res.Message)
		assert.NotEmpty(t, client.Cookie(CookieUnlocked))
	}

	assert.Len(t, leads.Leads(), 1)
}

func TestEndToEnd_TooFastSubmissionRejected(t *testing.T) {
	srv, leads, _ := newE2EServer(t)
	ctx := context.Background()

	client, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	_, err = client.Config(ctx, "https://blog.example/post")
	require.NoError(t, err)
	token, err := client.FetchToken(ctx)
	require.NoError(t, err)

	res, err := client.Submit(ctx, SubmitForm{
		Email:       "a@b.com",
		Consent:     true,
		Token:       token,
		Elapsed:     application.MinElapsed - time.Millisecond,
		Interaction: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 400, res.Status)
	assert.Equal(t, domain.MessageGeneric, res.Message)
	assert.Empty(t, leads.Leads())
}

func TestClient_TokenWithoutConfigIsForbidden(t *testing.T) {
	srv, _, _ := newE2EServer(t)

	client, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	_, err = client.FetchToken(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 403, se.Code)
}
