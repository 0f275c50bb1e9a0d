package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"reading-gate/engagement"
	"reading-gate/gate"
	"reading-gate/internal/logger"
)

// gate-sim simula um leitor contra um gate-server: busca a configuração, rola
// a página até o gate aparecer, espera e submete o email.
func main() {
	log, err := logger.New(getenvDefault("SIM_ENV", "development"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log); err != nil {
		log.Fatal("simulation failed", zap.Error(err))
	}
}

type page struct {
	mu       sync.Mutex
	y        int
	inner    int
	document int
}

func (p *page) ScrollY() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.y
}

func (p *page) InnerHeight() int                  { return p.inner }
func (p *page) DocumentHeight() int               { return p.document }
func (p *page) Container(string) (int, int, bool) { return 0, 0, false }

func (p *page) scrollBy(dy int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.y += dy
	if bottom := p.document - p.inner; p.y > bottom {
		p.y = bottom
	}
	return p.y
}

func run(ctx context.Context, log *zap.Logger) error {
	base := getenvDefault("GATE_URL", "http://localhost:8080")
	pageURL := getenvDefault("SIM_PAGE_URL", "https://blog.example/long-read")
	email := getenvDefault("SIM_EMAIL", "reader@example.com")
	step := getenvIntDefault("SIM_SCROLL_STEP", 300)
	every := getenvDurationDefault("SIM_SCROLL_EVERY", 800*time.Millisecond)
	think := getenvDurationDefault("SIM_THINK", 3*time.Second)

	client, err := gate.NewClient(base, nil)
	if err != nil {
		return err
	}

	cfg, err := client.Config(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("fetch config: %w", err)
	}
	if !cfg.Eligible {
		log.Info("page not eligible, nothing to do", zap.String("page", pageURL))
		return nil
	}

	revealed := make(chan engagement.Reveal, 1)
	view := &page{inner: 900, document: 6000}
	det := engagement.NewDetector(cfg.DetectorConfig(), view,
		engagement.WithContext(ctx),
		engagement.WithTokenFetcher(client.FetchToken),
		engagement.WithReveal(func(r engagement.Reveal) { revealed <- r }),
	)
	det.Start()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var rev engagement.Reveal
wait:
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rev = <-revealed:
			break wait
		case <-ticker.C:
			y := view.scrollBy(step)
			meaningful := det.OnScroll(engagement.Sample{ScrollY: y})
			log.Debug("scroll", zap.Int("y", y), zap.Bool("meaningful", meaningful))
		}
	}

	log.Info("gate shown",
		zap.String("trigger", rev.Trigger.String()),
		zap.Bool("token", rev.Token != ""),
		zap.Error(rev.TokenErr),
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(think):
	}
	det.OnPointer()

	form := gate.FormFromSignals(det.Signals(), email, true)
	form.PageURL = pageURL
	res, err := client.Submit(ctx, form)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	log.Info("submitted",
		zap.Int("status", res.Status),
		zap.Bool("success", res.Success),
		zap.String("message", res.Message),
		zap.Bool("unlocked", client.Cookie(gate.CookieUnlocked) != ""),
	)
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
