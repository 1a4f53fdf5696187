// Package session owns one reading session: the loaded document's layout,
// its playback controller and the navigator over both. Presentation
// layers read Snapshots and call Session methods; they never touch the
// layout or controller directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/metcalfc/prr/internal/extract"
	"github.com/metcalfc/prr/internal/layout"
	"github.com/metcalfc/prr/internal/navigate"
	"github.com/metcalfc/prr/internal/playback"
	"github.com/metcalfc/prr/internal/state"
)

var (
	ErrInvalidRange   = navigate.ErrInvalidRange
	ErrMalformedInput = navigate.ErrMalformedInput
	// ErrEmptyDocument is returned when extraction yields no words.
	ErrEmptyDocument = errors.New("document has no words")
	// ErrNoDocument is returned by navigation and playback with nothing loaded.
	ErrNoDocument = errors.New("no document loaded")
)

// Status is whether a document is on display.
type Status int

const (
	StatusIdle Status = iota
	StatusDisplay
)

func (s Status) String() string {
	if s == StatusDisplay {
		return "display"
	}
	return "idle"
}

// PositionStore persists reading positions and speeds by content hash.
type PositionStore interface {
	GetPosition(hash string) int
	SetPosition(hash, name string, word int) error
	GetInterval(hash string) time.Duration
	SetInterval(hash string, d time.Duration) error
}

var _ PositionStore = (*state.Store)(nil)

// Snapshot is a read-only view of the session. Pages and Words are shared
// with the session and must not be modified.
type Snapshot struct {
	Status           Status
	Name             string
	Pages            []layout.Page
	PageCount        int
	CurrentPage      int
	Words            []string
	CurrentWordIndex int
	PlaybackState    playback.State
	TickInterval     time.Duration
	WordInput        string
	PageInput        string
}

// CurrentWord returns the highlighted word, or "" when nothing is loaded.
func (s Snapshot) CurrentWord() string {
	if s.CurrentWordIndex < 0 || s.CurrentWordIndex >= len(s.Words) {
		return ""
	}
	return s.Words[s.CurrentWordIndex]
}

type document struct {
	name   string
	hash   string
	layout *layout.Layout
	nav    *navigate.Navigator
}

// Session is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	log       *zap.Logger
	extractor extract.Extractor
	measurer  layout.Measurer
	viewport  layout.Viewport
	ctrl      *playback.Controller
	store     PositionStore
	fresh     bool
	onChange  func(Snapshot)

	doc *document
}

// Option configures a Session.
type Option func(*options)

type options struct {
	log      *zap.Logger
	sched    playback.Scheduler
	store    PositionStore
	interval time.Duration
	fresh    bool
	onChange func(Snapshot)
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithScheduler replaces the system timer, mainly for tests.
func WithScheduler(s playback.Scheduler) Option { return func(o *options) { o.sched = s } }

// WithStore enables resume from and saving to store.
func WithStore(s PositionStore) Option { return func(o *options) { o.store = s } }

// WithInterval sets the initial tick interval.
func WithInterval(d time.Duration) Option { return func(o *options) { o.interval = d } }

// WithFresh ignores saved positions on upload. Positions are still saved.
func WithFresh(fresh bool) Option { return func(o *options) { o.fresh = fresh } }

// WithOnChange registers fn to receive a snapshot after every change,
// including playback ticks. fn is called without any session lock held.
func WithOnChange(fn func(Snapshot)) Option { return func(o *options) { o.onChange = fn } }

// New returns an idle session laying documents out in vp measured by m.
func New(extractor extract.Extractor, m layout.Measurer, vp layout.Viewport, opts ...Option) (*Session, error) {
	if err := vp.Validate(); err != nil {
		return nil, err
	}
	o := options{log: zap.NewNop(), interval: playback.DefaultInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if extractor == nil {
		extractor = extract.Default
	}

	s := &Session{
		log:       o.log,
		extractor: extractor,
		measurer:  m,
		viewport:  vp,
		ctrl:      playback.NewController(o.sched, o.interval),
		store:     o.store,
		fresh:     o.fresh,
		onChange:  o.onChange,
	}
	s.ctrl.OnChange(s.ticked)
	return s, nil
}

// Upload extracts data and replaces the current document with it. Any
// running playback is paused first. On failure the previous document, if
// any, stays loaded.
func (s *Session) Upload(ctx context.Context, name string, data []byte) error {
	s.ctrl.Pause()

	start := time.Now()
	text, err := s.extractor.Extract(ctx, name, data)
	if err != nil {
		s.log.Error("extraction failed", zap.String("name", name), zap.Error(err))
		s.emit()
		return err
	}
	s.log.Debug("extracted", zap.String("name", name), zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)))
	return s.load(name, state.HashBytes(data), text)
}

// Load replaces the current document with already extracted text.
func (s *Session) Load(name, text string) error {
	s.ctrl.Pause()
	return s.load(name, state.HashBytes([]byte(text)), text)
}

func (s *Session) load(name, hash, text string) error {
	l := layout.Build(text, s.viewport, s.measurer)
	if l.Empty() {
		s.log.Warn("empty document", zap.String("name", name))
		s.emit()
		return fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}

	s.mu.Lock()
	s.saveLocked()
	s.ctrl.Load(l.Pages, len(l.Words))
	doc := &document{name: name, hash: hash, layout: l, nav: navigate.New(l, s.ctrl)}
	s.doc = doc

	resumed := 0
	if s.store != nil && !s.fresh {
		if d := s.store.GetInterval(hash); d > 0 {
			s.ctrl.SetInterval(d)
		}
		if w := s.store.GetPosition(hash); w > 0 && w < len(l.Words) {
			if _, err := doc.nav.GoToWord(w); err == nil {
				resumed = w
			}
		}
	}
	s.mu.Unlock()

	s.log.Info("document loaded",
		zap.String("name", name),
		zap.Int("words", len(l.Words)),
		zap.Int("paragraphs", len(l.Paragraphs)),
		zap.Int("pages", l.PageCount()),
		zap.Int("resumed_at", resumed))
	s.emit()
	return nil
}

// Close stops playback and discards the document.
func (s *Session) Close() {
	s.mu.Lock()
	s.saveLocked()
	s.ctrl.Reset()
	name := ""
	if s.doc != nil {
		name = s.doc.name
	}
	s.doc = nil
	s.mu.Unlock()

	if name != "" {
		s.log.Info("document closed", zap.String("name", name))
	}
	s.emit()
}

// Save records the current position in the store.
func (s *Session) Save() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked()
}

func (s *Session) saveLocked() {
	if s.store == nil || s.doc == nil {
		return
	}
	word, _ := s.ctrl.Position()
	if err := s.store.SetPosition(s.doc.hash, s.doc.name, word); err != nil {
		s.log.Warn("save position", zap.String("name", s.doc.name), zap.Error(err))
		return
	}
	if err := s.store.SetInterval(s.doc.hash, s.ctrl.Interval()); err != nil {
		s.log.Warn("save interval", zap.String("name", s.doc.name), zap.Error(err))
	}
}

// PlayPause toggles playback and returns the new state.
func (s *Session) PlayPause() (playback.State, error) {
	if _, err := s.current(); err != nil {
		return playback.Idle, err
	}
	st := s.ctrl.Toggle()
	s.emit()
	return st, nil
}

// Pause stops playback if it is running.
func (s *Session) Pause() {
	s.ctrl.Pause()
	s.emit()
}

// AdjustSpeed changes the tick interval by delta and returns the result.
func (s *Session) AdjustSpeed(delta time.Duration) time.Duration {
	d := s.ctrl.AdjustSpeed(delta)
	s.emit()
	return d
}

// GoToWord moves to global word n without starting playback.
func (s *Session) GoToWord(n int) (layout.Position, error) {
	return s.navigate(func(nav *navigate.Navigator) (layout.Position, error) {
		return nav.GoToWord(n)
	})
}

// SelectWord moves to a word picked on screen.
func (s *Session) SelectWord(n int) (layout.Position, error) {
	return s.GoToWord(n)
}

// GoToWordInput moves to the word number in raw.
func (s *Session) GoToWordInput(raw string) (layout.Position, error) {
	return s.navigate(func(nav *navigate.Navigator) (layout.Position, error) {
		return nav.GoToWordInput(raw)
	})
}

// GoToPage shows page p, clamped, and returns the page shown.
func (s *Session) GoToPage(p int) (int, error) {
	return s.page(func(nav *navigate.Navigator) int { return nav.GoToPage(p) })
}

// GoToPageInput shows the page number in raw, or stays on the current
// page when raw is not a number.
func (s *Session) GoToPageInput(raw string) (int, error) {
	return s.page(func(nav *navigate.Navigator) int { return nav.GoToPageInput(raw) })
}

// SetWordInput replaces the pending word entry; only digits are kept.
func (s *Session) SetWordInput(raw string) bool {
	return s.input(func(nav *navigate.Navigator) bool { return nav.SetWordInput(raw) })
}

// SetPageInput replaces the pending page entry; only digits are kept.
func (s *Session) SetPageInput(raw string) bool {
	return s.input(func(nav *navigate.Navigator) bool { return nav.SetPageInput(raw) })
}

// StepWordInput nudges the pending word entry without committing it.
func (s *Session) StepWordInput(delta int) string {
	var out string
	s.input(func(nav *navigate.Navigator) bool { out = nav.StepWordInput(delta); return true })
	return out
}

// StepPageInput nudges the pending page entry without committing it.
func (s *Session) StepPageInput(delta int) string {
	var out string
	s.input(func(nav *navigate.Navigator) bool { out = nav.StepPageInput(delta); return true })
	return out
}

// CommitWordInput jumps to the pending word entry.
func (s *Session) CommitWordInput() (layout.Position, error) {
	return s.navigate(func(nav *navigate.Navigator) (layout.Position, error) {
		return nav.CommitWordInput()
	})
}

// CommitPageInput shows the pending page entry.
func (s *Session) CommitPageInput() (int, error) {
	return s.page(func(nav *navigate.Navigator) int { return nav.CommitPageInput() })
}

// PrevSentence pauses and moves to the previous sentence start.
func (s *Session) PrevSentence() (layout.Position, error) {
	return s.navigate(func(nav *navigate.Navigator) (layout.Position, error) {
		s.ctrl.Pause()
		return nav.PrevSentence()
	})
}

// NextSentence pauses and moves to the next sentence start.
func (s *Session) NextSentence() (layout.Position, error) {
	return s.navigate(func(nav *navigate.Navigator) (layout.Position, error) {
		s.ctrl.Pause()
		return nav.NextSentence()
	})
}

// Restart pauses and returns to the first word.
func (s *Session) Restart() (layout.Position, error) {
	return s.navigate(func(nav *navigate.Navigator) (layout.Position, error) {
		s.ctrl.Pause()
		return nav.GoToWord(0)
	})
}

// Rows returns the display rows of page n for the session viewport.
func (s *Session) Rows(n int) []layout.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	return s.doc.layout.Rows(n)
}

// Locate resolves a global word without moving.
func (s *Session) Locate(n int) (layout.Position, error) {
	doc, err := s.current()
	if err != nil {
		return layout.Position{}, err
	}
	return doc.layout.Locate(n)
}

// Viewport returns the layout viewport.
func (s *Session) Viewport() layout.Viewport { return s.viewport }

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	word, page := s.ctrl.Position()
	snap := Snapshot{
		CurrentPage:      page,
		CurrentWordIndex: word,
		PlaybackState:    s.ctrl.State(),
		TickInterval:     s.ctrl.Interval(),
	}
	if s.doc == nil {
		return snap
	}
	l := s.doc.layout
	snap.Status = StatusDisplay
	snap.Name = s.doc.name
	snap.Pages = l.Pages
	snap.PageCount = l.PageCount()
	snap.Words = l.Words
	snap.WordInput = s.doc.nav.WordInput()
	snap.PageInput = s.doc.nav.PageInput()
	return snap
}

func (s *Session) current() (*document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	return s.doc, nil
}

func (s *Session) navigate(fn func(*navigate.Navigator) (layout.Position, error)) (layout.Position, error) {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return layout.Position{}, ErrNoDocument
	}
	pos, err := fn(s.doc.nav)
	s.mu.Unlock()
	if err != nil {
		s.log.Debug("navigation rejected", zap.Error(err))
		return pos, err
	}
	s.emit()
	return pos, nil
}

func (s *Session) page(fn func(*navigate.Navigator) int) (int, error) {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return 0, ErrNoDocument
	}
	p := fn(s.doc.nav)
	s.mu.Unlock()
	s.emit()
	return p, nil
}

func (s *Session) input(fn func(*navigate.Navigator) bool) bool {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return false
	}
	ok := fn(s.doc.nav)
	s.mu.Unlock()
	if ok {
		s.emit()
	}
	return ok
}

// ticked runs on the timer goroutine after each playback advance.
func (s *Session) ticked() {
	snap := s.Snapshot()
	if snap.PlaybackState == playback.Paused && snap.CurrentWordIndex == len(snap.Words)-1 {
		s.log.Debug("end of document", zap.String("name", snap.Name))
	}
	if s.onChange != nil {
		s.onChange(snap)
	}
}

func (s *Session) emit() {
	if s.onChange != nil {
		s.onChange(s.Snapshot())
	}
}
