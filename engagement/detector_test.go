package engagement

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeView struct {
	scrollY   int
	inner     int
	doc       int
	top       int
	height    int
	container bool
}

func (v *fakeView) ScrollY() int        { return v.scrollY }
func (v *fakeView) InnerHeight() int    { return v.inner }
func (v *fakeView) DocumentHeight() int { return v.doc }
func (v *fakeView) Container(string) (int, int, bool) {
	return v.top, v.height, v.container
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func defaultConfig() Config {
	return Config{
		DelayBackstop:            12 * time.Second,
		DelayMax:                 20 * time.Second,
		ScrollDepthPercent:       30,
		MinMeaningfulScrollCount: 2,
	}
}

// syncDispatch roda a busca do token na mesma goroutine.
func syncDispatch(f func()) { f() }

func newTestDetector(cfg Config, view *fakeView, clock *ManualClock, opts ...Option) (*Detector, *[]Reveal) {
	var reveals []Reveal
	base := []Option{
		WithClock(clock),
		WithDispatcher(syncDispatch),
		WithTokenFetcher(func(context.Context) (string, error) { return "tok", nil }),
		WithReveal(func(r Reveal) { reveals = append(reveals, r) }),
	}
	d := NewDetector(cfg, view, append(base, opts...)...)
	return d, &reveals
}

func TestDetector_TwoMeaningfulScrollsPastDepthShows(t *testing.T) {
	clock := NewManualClock(t0)
	view := &fakeView{inner: 800, doc: 4000}
	d, reveals := newTestDetector(defaultConfig(), view, clock)
	d.Start()

	if got := d.Phase(); got != Armed {
		t.Fatalf("expected armed, got %v", got)
	}

	// 500+800 = 1300/4000 = 32.5%, mas é só o primeiro scroll significativo.
	if !d.OnScroll(Sample{ScrollY: 500, At: t0.Add(time.Second)}) {
		t.Fatalf("expected first scroll to be meaningful")
	}
	if d.State().ModalShown {
		t.Fatalf("expected modal hidden after one meaningful scroll")
	}

	if !d.OnScroll(Sample{ScrollY: 700, At: t0.Add(2 * time.Second)}) {
		t.Fatalf("expected second scroll to be meaningful")
	}
	if d.Phase() != Shown || d.Trigger() != TriggerScroll {
		t.Fatalf("expected shown by scroll, got %v/%v", d.Phase(), d.Trigger())
	}
	if len(*reveals) != 1 || (*reveals)[0].Token != "tok" {
		t.Fatalf("expected one reveal with token, got %+v", *reveals)
	}
}

func TestDetector_JitterAndDebounceIgnored(t *testing.T) {
	clock := NewManualClock(t0)
	view := &fakeView{inner: 800, doc: 1000}
	d, _ := newTestDetector(defaultConfig(), view, clock)
	d.Start()

	if d.OnScroll(Sample{ScrollY: MinScrollDelta - 1, At: t0.Add(time.Second)}) {
		t.Fatalf("expected jitter below delta to be ignored")
	}
	if !d.State().InteractionHappened {
		t.Fatalf("expected scroll to count as interaction")
	}
	if !d.OnScroll(Sample{ScrollY: 200, At: t0.Add(2 * time.Second)}) {
		t.Fatalf("expected 200px scroll to be meaningful")
	}
	// Dentro da janela de debounce.
	if d.OnScroll(Sample{ScrollY: 600, At: t0.Add(2*time.Second + ScrollDebounce - time.Millisecond)}) {
		t.Fatalf("expected scroll inside debounce window to be ignored")
	}
	if got := d.State().MeaningfulScrollCount; got != 1 {
		t.Fatalf("expected 1 meaningful scroll, got %d", got)
	}
	if !d.OnScroll(Sample{ScrollY: 600, At: t0.Add(2*time.Second + ScrollDebounce)}) {
		t.Fatalf("expected scroll at debounce boundary to count")
	}
	if d.Phase() != Shown {
		t.Fatalf("expected shown after second meaningful scroll")
	}
}

func TestDetector_ShallowScrollDoesNotShow(t *testing.T) {
	clock := NewManualClock(t0)
	view := &fakeView{inner: 500, doc: 10000}
	d, _ := newTestDetector(defaultConfig(), view, clock)
	d.Start()

	d.OnScroll(Sample{ScrollY: 200, At: t0.Add(time.Second)})
	d.OnScroll(Sample{ScrollY: 400, At: t0.Add(2 * time.Second)})
	d.OnScroll(Sample{ScrollY: 600, At: t0.Add(3 * time.Second)})

	if d.State().ModalShown {
		t.Fatalf("expected modal hidden below depth threshold")
	}
}

func TestDetector_ContainerRelativeDepth(t *testing.T) {
	clock := NewManualClock(t0)
	// Documento enorme, container curto: profundidade medida pelo container.
	view := &fakeView{inner: 400, doc: 50000, top: 1000, height: 2000, container: true}
	cfg := defaultConfig()
	cfg.ContentSelector = "article"
	d, _ := newTestDetector(cfg, view, clock)
	d.Start()

	d.OnScroll(Sample{ScrollY: 150, At: t0.Add(time.Second)})
	// (1200+400-1000)/2000 = 30%
	d.OnScroll(Sample{ScrollY: 1200, At: t0.Add(2 * time.Second)})

	if d.Phase() != Shown {
		t.Fatalf("expected shown at 30%% of container, got %v", d.Phase())
	}
}

func TestDetector_ContainerMissingFallsBackToDocument(t *testing.T) {
	clock := NewManualClock(t0)
	view := &fakeView{inner: 400, doc: 50000}
	cfg := defaultConfig()
	cfg.ContentSelector = "article"
	d, _ := newTestDetector(cfg, view, clock)
	d.Start()

	d.OnScroll(Sample{ScrollY: 150, At: t0.Add(time.Second)})
	d.OnScroll(Sample{ScrollY: 1200, At: t0.Add(2 * time.Second)})

	if d.State().ModalShown {
		t.Fatalf("expected document-relative depth to stay under threshold")
	}
}

func TestDetector_BackstopFiresWithoutScroll(t *testing.T) {
	clock := NewManualClock(t0)
	d, reveals := newTestDetector(defaultConfig(), &fakeView{inner: 800, doc: 4000}, clock)
	d.Start()

	clock.Advance(12*time.Second - time.Millisecond)
	if d.State().ModalShown {
		t.Fatalf("expected hidden before backstop")
	}
	clock.Advance(time.Millisecond)
	if d.Trigger() != TriggerBackstop {
		t.Fatalf("expected backstop trigger, got %v", d.Trigger())
	}

	clock.Advance(time.Minute)
	if len(*reveals) != 1 {
		t.Fatalf("expected max timer cancelled after backstop, got %d reveals", len(*reveals))
	}
}

func TestDetector_MaxFiresWhenBackstopLonger(t *testing.T) {
	clock := NewManualClock(t0)
	cfg := defaultConfig()
	cfg.DelayBackstop = time.Hour
	d, _ := newTestDetector(cfg, &fakeView{inner: 800, doc: 4000}, clock)
	d.Start()

	clock.Advance(20 * time.Second)
	if d.Trigger() != TriggerMax {
		t.Fatalf("expected max trigger, got %v", d.Trigger())
	}
}

func TestDetector_ShowIsIdempotent(t *testing.T) {
	clock := NewManualClock(t0)
	d, reveals := newTestDetector(defaultConfig(), &fakeView{inner: 800, doc: 4000}, clock)
	d.Start()

	if !d.Show(TriggerScroll) {
		t.Fatalf("expected first show to take effect")
	}
	if d.Show(TriggerBackstop) {
		t.Fatalf("expected second show to be a no-op")
	}
	clock.Advance(time.Minute)
	if len(*reveals) != 1 {
		t.Fatalf("expected exactly one reveal, got %d", len(*reveals))
	}
	if d.Trigger() != TriggerScroll {
		t.Fatalf("expected trigger to stay scroll, got %v", d.Trigger())
	}
}

func TestDetector_PreviewShowsImmediately(t *testing.T) {
	clock := NewManualClock(t0)
	cfg := defaultConfig()
	cfg.Preview = true
	d, reveals := newTestDetector(cfg, &fakeView{inner: 800, doc: 4000}, clock)
	d.Start()

	if d.Trigger() != TriggerPreview || len(*reveals) != 1 {
		t.Fatalf("expected immediate preview reveal, got %v with %d reveals", d.Trigger(), len(*reveals))
	}
}

func TestDetector_TokenFailureStillReveals(t *testing.T) {
	clock := NewManualClock(t0)
	fail := errors.New("network down")
	d, reveals := newTestDetector(defaultConfig(), &fakeView{inner: 800, doc: 4000}, clock,
		WithTokenFetcher(func(context.Context) (string, error) { return "", fail }))
	d.Start()
	d.Show(TriggerBackstop)

	if len(*reveals) != 1 {
		t.Fatalf("expected reveal despite token failure")
	}
	r := (*reveals)[0]
	if !errors.Is(r.TokenErr, fail) || r.Token != "" {
		t.Fatalf("expected empty token with error, got %+v", r)
	}
	if !d.Revealed() {
		t.Fatalf("expected detector to report revealed")
	}
}

func TestDetector_SignalsMeasureFromReveal(t *testing.T) {
	clock := NewManualClock(t0)
	d, _ := newTestDetector(defaultConfig(), &fakeView{inner: 800, doc: 4000}, clock)

	if s := d.Signals(); s.Elapsed != 0 || s.Interaction {
		t.Fatalf("expected zero signals before reveal, got %+v", s)
	}

	d.Start()
	clock.Advance(5 * time.Second)
	d.Show(TriggerScroll)
	clock.Advance(3 * time.Second)
	d.OnPointer()

	s := d.Signals()
	if s.Elapsed != 3*time.Second {
		t.Fatalf("expected 3s elapsed since reveal, got %v", s.Elapsed)
	}
	if !s.Interaction || s.Token != "tok" {
		t.Fatalf("expected interaction and token, got %+v", s)
	}
}

func TestDetector_KeyboardWhileShown(t *testing.T) {
	clock := NewManualClock(t0)
	d, _ := newTestDetector(defaultConfig(), &fakeView{inner: 800, doc: 4000}, clock, WithFocusables(3))

	if r := d.OnKey("Escape", false); r.PreventDefault {
		t.Fatalf("expected escape untouched before show")
	}
	if !d.State().InteractionHappened {
		t.Fatalf("expected key press to count as interaction")
	}

	d.Start()
	d.Show(TriggerScroll)

	if r := d.OnKey("Escape", false); !r.PreventDefault {
		t.Fatalf("expected escape to be swallowed while shown")
	}
	if r := d.OnKey("Tab", false); r.PreventDefault || r.Focus != 1 {
		t.Fatalf("expected plain tab to move to 1, got %+v", r)
	}
	d.OnKey("Tab", false)
	if r := d.OnKey("Tab", false); !r.PreventDefault || r.Focus != 0 {
		t.Fatalf("expected tab from last to wrap to 0, got %+v", r)
	}
	if r := d.OnKey("Tab", true); !r.PreventDefault || r.Focus != 2 {
		t.Fatalf("expected shift+tab from first to wrap to last, got %+v", r)
	}
}

func TestDetector_ZeroDocumentHeightCountsAsDeep(t *testing.T) {
	clock := NewManualClock(t0)
	d, _ := newTestDetector(defaultConfig(), &fakeView{inner: 800, doc: 0}, clock)
	d.Start()

	d.OnScroll(Sample{ScrollY: 200, At: t0.Add(time.Second)})
	d.OnScroll(Sample{ScrollY: 400, At: t0.Add(2 * time.Second)})
	if d.Phase() != Shown {
		t.Fatalf("expected show when document height is unknown")
	}
}
