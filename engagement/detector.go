package engagement

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	MinScrollDelta = 120
	ScrollDebounce = 600 * time.Millisecond
)

type Phase int

const (
	Idle Phase = iota
	Armed
	Shown
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Shown:
		return "shown"
	default:
		return "unknown"
	}
}

// Trigger diz qual condição mostrou o gate.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerScroll
	TriggerBackstop
	TriggerMax
	TriggerPreview
)

func (t Trigger) String() string {
	switch t {
	case TriggerScroll:
		return "scroll"
	case TriggerBackstop:
		return "backstop"
	case TriggerMax:
		return "max"
	case TriggerPreview:
		return "preview"
	default:
		return "none"
	}
}

// Sample é um evento de scroll. At zero usa o relógio do detector.
type Sample struct {
	ScrollY int
	At      time.Time
}

// State é o estado de engajamento de uma visualização de página.
type State struct {
	MeaningfulScrollCount int
	LastMeaningfulAt      time.Time
	LastScrollY           int
	InteractionHappened   bool
	ModalShown            bool
	// ModalShownAt fica zero até o modal ser de fato revelado.
	ModalShownAt time.Time
}

type Config struct {
	DelayBackstop            time.Duration
	DelayMax                 time.Duration
	ScrollDepthPercent       float64
	MinMeaningfulScrollCount int
	// ContentSelector vazio mede a profundidade pelo documento inteiro.
	ContentSelector string
	Preview         bool
}

// Viewport abstrai o documento: posição de scroll e alturas.
type Viewport interface {
	ScrollY() int
	InnerHeight() int
	DocumentHeight() int
	// Container devolve o topo absoluto e a altura do container de conteúdo.
	Container(selector string) (top, height int, ok bool)
}

// TokenFetcher busca o token do gate (POST /gate/token).
type TokenFetcher func(ctx context.Context) (string, error)

// Reveal é entregue quando o modal aparece. TokenErr != nil significa que o
// modal aparece mesmo assim, sem token válido.
type Reveal struct {
	Trigger  Trigger
	Token    string
	TokenErr error
	At       time.Time
}

// Signals são os sinais lidos uma única vez no momento da submissão.
type Signals struct {
	Elapsed     time.Duration
	Interaction bool
	Token       string
}

// KeyResult informa ao chamador o que fazer com um evento de teclado.
type KeyResult struct {
	PreventDefault bool
	// Focus é o índice focado no modal, ou -1 quando o foco não muda.
	Focus int
}

type Detector struct {
	mu sync.Mutex

	cfg    Config
	view   Viewport
	clock  Clock
	fetch  TokenFetcher
	reveal func(Reveal)
	goFn   func(func())
	ctx    context.Context

	phase   Phase
	state   State
	trigger Trigger
	token   string
	timers  []Timer
	focus   FocusTrap
}

type Option func(*Detector)

func WithClock(c Clock) Option {
	return func(d *Detector) { d.clock = c }
}

func WithTokenFetcher(f TokenFetcher) Option {
	return func(d *Detector) { d.fetch = f }
}

// WithReveal registra o callback que efetivamente mostra o modal.
func WithReveal(f func(Reveal)) Option {
	return func(d *Detector) { d.reveal = f }
}

// WithDispatcher troca como a busca do token é agendada (padrão: goroutine).
func WithDispatcher(goFn func(func())) Option {
	return func(d *Detector) { d.goFn = goFn }
}

func WithContext(ctx context.Context) Option {
	return func(d *Detector) { d.ctx = ctx }
}

// WithFocusables define quantos elementos focáveis o modal tem.
func WithFocusables(n int) Option {
	return func(d *Detector) { d.focus.Focusables = n }
}

func NewDetector(cfg Config, view Viewport, opts ...Option) *Detector {
	d := &Detector{
		cfg:   cfg,
		view:  view,
		clock: RealClock(),
		goFn:  func(f func()) { go f() },
		ctx:   context.Background(),
		focus: FocusTrap{Focusables: 4},
	}
	for _, opt := range opts {
		opt(d)
	}
	if view != nil {
		d.state.LastScrollY = view.ScrollY()
	}
	return d
}

// Start arma os timers (Idle -> Armed) ou, em preview, mostra na hora.
func (d *Detector) Start() {
	d.mu.Lock()
	if d.phase != Idle {
		d.mu.Unlock()
		return
	}
	if d.cfg.Preview {
		d.mu.Unlock()
		d.Show(TriggerPreview)
		return
	}
	d.phase = Armed
	d.mu.Unlock()

	backstop := d.clock.AfterFunc(d.cfg.DelayBackstop, func() { d.Show(TriggerBackstop) })
	maxTimer := d.clock.AfterFunc(d.cfg.DelayMax, func() { d.Show(TriggerMax) })

	d.mu.Lock()
	if d.phase == Shown {
		d.mu.Unlock()
		backstop.Stop()
		maxTimer.Stop()
		return
	}
	d.timers = append(d.timers, backstop, maxTimer)
	d.mu.Unlock()
}

// OnScroll processa um evento de scroll e diz se ele contou como scroll significativo.
func (d *Detector) OnScroll(s Sample) bool {
	d.mu.Lock()
	now := s.At
	if now.IsZero() {
		now = d.clock.Now()
	}
	d.state.InteractionHappened = true

	delta := s.ScrollY - d.state.LastScrollY
	if delta < 0 {
		delta = -delta
	}
	if delta < MinScrollDelta || now.Sub(d.state.LastMeaningfulAt) < ScrollDebounce {
		d.mu.Unlock()
		return false
	}

	d.state.MeaningfulScrollCount++
	d.state.LastMeaningfulAt = now
	d.state.LastScrollY = s.ScrollY

	depth := d.contentDepthPercent(s.ScrollY)
	fire := depth >= d.cfg.ScrollDepthPercent && d.state.MeaningfulScrollCount >= d.cfg.MinMeaningfulScrollCount
	d.mu.Unlock()

	if fire {
		d.Show(TriggerScroll)
	}
	return true
}

func (d *Detector) OnPointer() {
	d.mu.Lock()
	d.state.InteractionHappened = true
	d.mu.Unlock()
}

// OnKey registra interação e, com o modal visível, prende o foco e engole Escape.
func (d *Detector) OnKey(key string, shift bool) KeyResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.InteractionHappened = true

	if d.phase != Shown {
		return KeyResult{Focus: -1}
	}
	switch key {
	case "Escape":
		return KeyResult{PreventDefault: true, Focus: -1}
	case "Tab":
		idx, wrapped := d.focus.Next(shift)
		return KeyResult{PreventDefault: wrapped, Focus: idx}
	default:
		return KeyResult{Focus: -1}
	}
}

// contentDepthPercent: fundo do viewport relativo ao container (ou documento), piso 0.
// Pode passar de 100 quando o conteúdo é curto.
func (d *Detector) contentDepthPercent(scrollY int) float64 {
	if d.view == nil {
		return 0
	}
	bottom := float64(scrollY + d.view.InnerHeight())
	if sel := d.cfg.ContentSelector; sel != "" {
		if top, height, ok := d.view.Container(sel); ok && height > 0 {
			return math.Max(0, (bottom-float64(top))/float64(height)*100)
		}
	}
	doc := d.view.DocumentHeight()
	if doc <= 0 {
		return math.Inf(1)
	}
	return math.Max(0, bottom/float64(doc)*100)
}

// Show é idempotente: só a primeira chamada tem efeito. Busca o token de forma
// assíncrona e revela o modal com ou sem token.
func (d *Detector) Show(t Trigger) bool {
	d.mu.Lock()
	if d.state.ModalShown {
		d.mu.Unlock()
		return false
	}
	d.state.ModalShown = true
	d.phase = Shown
	d.trigger = t
	timers := d.timers
	d.timers = nil
	fetch := d.fetch
	ctx := d.ctx
	d.mu.Unlock()

	for _, tm := range timers {
		tm.Stop()
	}

	d.goFn(func() {
		var (
			token string
			err   error
		)
		if fetch != nil {
			token, err = fetch(ctx)
		}
		d.finishReveal(t, token, err)
	})
	return true
}

func (d *Detector) finishReveal(t Trigger, token string, err error) {
	d.mu.Lock()
	now := d.clock.Now()
	d.state.ModalShownAt = now
	d.token = token
	d.focus.Reset()
	reveal := d.reveal
	d.mu.Unlock()

	if reveal != nil {
		reveal(Reveal{Trigger: t, Token: token, TokenErr: err, At: now})
	}
}

// Signals lê tempo desde a revelação, flag de interação e token atual.
func (d *Detector) Signals() Signals {
	d.mu.Lock()
	defer d.mu.Unlock()
	var elapsed time.Duration
	if !d.state.ModalShownAt.IsZero() {
		elapsed = d.clock.Now().Sub(d.state.ModalShownAt)
	}
	return Signals{Elapsed: elapsed, Interaction: d.state.InteractionHappened, Token: d.token}
}

func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Detector) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

func (d *Detector) Trigger() Trigger {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trigger
}

// Revealed indica que o modal já está visível (token resolvido).
func (d *Detector) Revealed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.state.ModalShownAt.IsZero()
}
