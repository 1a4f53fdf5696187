package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metcalfc/prr/internal/extract"
	"github.com/metcalfc/prr/internal/layout"
	"github.com/metcalfc/prr/internal/playback"
)

type fakeTimer struct {
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(_ time.Duration, fn func()) playback.Timer {
	t := &fakeTimer{fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) active() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (s *fakeScheduler) fire(t *testing.T, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		var pending *fakeTimer
		for _, tm := range s.timers {
			if !tm.stopped && !tm.fired {
				require.Nil(t, pending, "more than one active timer")
				pending = tm
			}
		}
		if pending == nil {
			return
		}
		pending.fired = true
		pending.fn()
	}
}

type memEntry struct {
	word     int
	interval time.Duration
}

type memStore map[string]*memEntry

func (m memStore) entry(hash string) *memEntry {
	e, ok := m[hash]
	if !ok {
		e = &memEntry{}
		m[hash] = e
	}
	return e
}

func (m memStore) GetPosition(hash string) int {
	if e, ok := m[hash]; ok {
		return e.word
	}
	return 0
}

func (m memStore) SetPosition(hash, _ string, word int) error {
	m.entry(hash).word = word
	return nil
}

func (m memStore) GetInterval(hash string) time.Duration {
	if e, ok := m[hash]; ok {
		return e.interval
	}
	return 0
}

func (m memStore) SetInterval(hash string, d time.Duration) error {
	m.entry(hash).interval = d
	return nil
}

// sampleDoc has 7 one-line paragraphs of two words; three fit on a page.
func sampleDoc() string {
	var paras []string
	for i := 0; i < 7; i++ {
		paras = append(paras, fmt.Sprintf("w%da w%db.", i, i))
	}
	return strings.Join(paras, layout.PageBreak)
}

var testViewport = layout.Viewport{Width: 40, Height: 30, LineHeight: 10}

func newSession(t *testing.T, opts ...Option) (*Session, *fakeScheduler) {
	t.Helper()
	sched := &fakeScheduler{}
	text := extract.ExtractorFunc(func(_ context.Context, _ string, data []byte) (string, error) {
		return string(data), nil
	})
	s, err := New(text, layout.Monospace(1), testViewport, append([]Option{WithScheduler(sched)}, opts...)...)
	require.NoError(t, err)
	return s, sched
}

func TestNewRejectsViewport(t *testing.T) {
	_, err := New(nil, layout.Monospace(1), layout.Viewport{Width: 10, Height: 5, LineHeight: 10})
	assert.Error(t, err)
}

func TestLoadSnapshot(t *testing.T) {
	s, _ := newSession(t)

	snap := s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, "", snap.CurrentWord())

	require.NoError(t, s.Load("doc.txt", sampleDoc()))
	snap = s.Snapshot()
	assert.Equal(t, StatusDisplay, snap.Status)
	assert.Equal(t, "doc.txt", snap.Name)
	assert.Equal(t, 3, snap.PageCount)
	assert.Len(t, snap.Pages, 3)
	assert.Len(t, snap.Words, 14)
	assert.Equal(t, 1, snap.CurrentPage)
	assert.Equal(t, 0, snap.CurrentWordIndex)
	assert.Equal(t, "w0a", snap.CurrentWord())
	assert.Equal(t, playback.Idle, snap.PlaybackState)
	assert.Equal(t, 250*time.Millisecond, snap.TickInterval)
	assert.Equal(t, "1", snap.PageInput)
}

func TestUploadEmptyDocument(t *testing.T) {
	s, _ := newSession(t)
	err := s.Upload(context.Background(), "blank.txt", []byte("  \n\t "))
	assert.ErrorIs(t, err, ErrEmptyDocument)
	assert.Equal(t, StatusIdle, s.Snapshot().Status)
}

func TestUploadExtractionFailure(t *testing.T) {
	failing := extract.ExtractorFunc(func(context.Context, string, []byte) (string, error) {
		return "", fmt.Errorf("%w: boom", extract.ErrExtraction)
	})
	s, err := New(failing, layout.Monospace(1), testViewport)
	require.NoError(t, err)

	err = s.Upload(context.Background(), "a.pdf", []byte("%PDF-"))
	assert.ErrorIs(t, err, extract.ErrExtraction)
	assert.Equal(t, StatusIdle, s.Snapshot().Status)
}

func TestUploadWithRegisteredFormats(t *testing.T) {
	s, err := New(nil, layout.Monospace(1), testViewport)
	require.NoError(t, err)
	require.NoError(t, s.Upload(context.Background(), "notes.txt", []byte("Alpha beta.\n\nGamma delta epsilon.")))

	snap := s.Snapshot()
	assert.Equal(t, []string{"Alpha", "beta.", "Gamma", "delta", "epsilon."}, snap.Words)
	assert.Equal(t, 1, snap.PageCount)

	pos, err := s.Locate(3)
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Paragraph)
	assert.Equal(t, 1, pos.Page)
}

func TestNavigationWithoutDocument(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.PlayPause()
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = s.GoToWord(0)
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = s.GoToPage(1)
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.False(t, s.SetWordInput("3"))
	assert.Nil(t, s.Rows(1))
}

func TestPlaybackTurnsPages(t *testing.T) {
	var changes int
	s, sched := newSession(t, WithOnChange(func(snap Snapshot) { changes++ }))
	require.NoError(t, s.Load("doc.txt", sampleDoc()))

	st, err := s.PlayPause()
	require.NoError(t, err)
	assert.Equal(t, playback.Playing, st)

	before := changes
	sched.fire(t, 6)
	snap := s.Snapshot()
	assert.Equal(t, 6, snap.CurrentWordIndex)
	assert.Equal(t, 2, snap.CurrentPage)
	assert.Equal(t, 6, changes-before)

	st, _ = s.PlayPause()
	assert.Equal(t, playback.Paused, st)
	assert.Equal(t, 0, sched.active())
}

func TestPlaybackStopsAtEnd(t *testing.T) {
	s, sched := newSession(t)
	require.NoError(t, s.Load("doc.txt", sampleDoc()))
	_, err := s.GoToWord(12)
	require.NoError(t, err)

	_, err = s.PlayPause()
	require.NoError(t, err)
	sched.fire(t, 1)

	snap := s.Snapshot()
	assert.Equal(t, 13, snap.CurrentWordIndex)
	assert.Equal(t, playback.Paused, snap.PlaybackState)
	assert.Equal(t, 0, sched.active())
}

func TestGoToWord(t *testing.T) {
	s, _ := newSession(t)
	require.NoError(t, s.Load("doc.txt", sampleDoc()))

	for _, n := range []int{-1, 14} {
		_, err := s.GoToWord(n)
		assert.ErrorIs(t, err, ErrInvalidRange, "word %d", n)
	}
	assert.Equal(t, playback.Idle, s.Snapshot().PlaybackState)

	pos, err := s.SelectWord(13)
	require.NoError(t, err)
	assert.Equal(t, 6, pos.Paragraph)
	assert.Equal(t, 3, pos.Page)

	snap := s.Snapshot()
	assert.Equal(t, 13, snap.CurrentWordIndex)
	assert.Equal(t, 3, snap.CurrentPage)
	assert.Equal(t, playback.Paused, snap.PlaybackState)

	_, err = s.GoToWordInput("seven")
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.Equal(t, 13, s.Snapshot().CurrentWordIndex)
}

func TestGoToPage(t *testing.T) {
	s, _ := newSession(t)
	require.NoError(t, s.Load("doc.txt", sampleDoc()))

	p, err := s.GoToPage(9)
	require.NoError(t, err)
	assert.Equal(t, 3, p)

	p, err = s.GoToPageInput("abc")
	require.NoError(t, err)
	assert.Equal(t, 3, p)

	p, _ = s.GoToPage(0)
	assert.Equal(t, 1, p)
}

func TestGoToPageWhilePlaying(t *testing.T) {
	s, sched := newSession(t)
	require.NoError(t, s.Load("doc.txt", sampleDoc()))
	_, err := s.PlayPause()
	require.NoError(t, err)
	sched.fire(t, 1)

	_, err = s.GoToPage(3)
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Equal(t, 12, snap.CurrentWordIndex)
	assert.Equal(t, playback.Playing, snap.PlaybackState)

	sched.fire(t, 1)
	snap = s.Snapshot()
	assert.Equal(t, 13, snap.CurrentWordIndex)
	assert.Equal(t, 3, snap.CurrentPage)
}

func TestPendingInputs(t *testing.T) {
	s, _ := newSession(t)
	require.NoError(t, s.Load("doc.txt", sampleDoc()))

	assert.False(t, s.SetPageInput("2a"))
	assert.True(t, s.SetPageInput("2"))
	assert.Equal(t, "3", s.StepPageInput(1))
	assert.Equal(t, "3", s.StepPageInput(1))
	assert.Equal(t, 1, s.Snapshot().CurrentPage)

	p, err := s.CommitPageInput()
	require.NoError(t, err)
	assert.Equal(t, 3, p)

	assert.Equal(t, "1", s.StepWordInput(1))
	assert.True(t, s.SetWordInput("8"))
	pos, err := s.CommitWordInput()
	require.NoError(t, err)
	assert.Equal(t, 2, pos.Page)
	assert.Equal(t, "", s.Snapshot().WordInput)
}

func TestSentencesAndRestart(t *testing.T) {
	s, sched := newSession(t)
	require.NoError(t, s.Load("doc.txt", sampleDoc()))

	pos, err := s.NextSentence()
	require.NoError(t, err)
	assert.Equal(t, 2, pos.Word)

	_, err = s.PlayPause()
	require.NoError(t, err)
	pos, err = s.NextSentence()
	require.NoError(t, err)
	assert.Equal(t, 4, pos.Word)
	assert.Equal(t, playback.Paused, s.Snapshot().PlaybackState)
	assert.Equal(t, 0, sched.active())

	pos, err = s.PrevSentence()
	require.NoError(t, err)
	assert.Equal(t, 2, pos.Word)

	pos, err = s.Restart()
	require.NoError(t, err)
	assert.Equal(t, 0, pos.Word)
	assert.Equal(t, 1, s.Snapshot().CurrentPage)
}

func TestAdjustSpeed(t *testing.T) {
	s, _ := newSession(t)
	for i := 0; i < 3; i++ {
		s.AdjustSpeed(-playback.SpeedStep)
	}
	assert.Equal(t, 100*time.Millisecond, s.Snapshot().TickInterval)
	for i := 0; i < 5; i++ {
		s.AdjustSpeed(-playback.SpeedStep)
	}
	assert.Equal(t, 50*time.Millisecond, s.Snapshot().TickInterval)
}

func TestCloseStopsPlayback(t *testing.T) {
	s, sched := newSession(t)
	require.NoError(t, s.Load("doc.txt", sampleDoc()))
	_, err := s.PlayPause()
	require.NoError(t, err)
	sched.fire(t, 2)

	s.Close()
	assert.Equal(t, 0, sched.active())
	sched.fire(t, 1)

	snap := s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, 0, snap.CurrentWordIndex)
	assert.Equal(t, playback.Idle, snap.PlaybackState)
	assert.Empty(t, snap.Words)
}

func TestUploadReplacesRunningDocument(t *testing.T) {
	s, sched := newSession(t)
	require.NoError(t, s.Load("first.txt", sampleDoc()))
	_, err := s.PlayPause()
	require.NoError(t, err)
	sched.fire(t, 3)

	require.NoError(t, s.Upload(context.Background(), "second.txt", []byte("one two three")))
	assert.Equal(t, 0, sched.active())

	snap := s.Snapshot()
	assert.Equal(t, "second.txt", snap.Name)
	assert.Equal(t, 0, snap.CurrentWordIndex)
	assert.Equal(t, playback.Idle, snap.PlaybackState)
	assert.Len(t, snap.Words, 3)
}

func TestUploadFailureKeepsPreviousDocument(t *testing.T) {
	calls := 0
	ex := extract.ExtractorFunc(func(_ context.Context, _ string, data []byte) (string, error) {
		calls++
		if calls > 1 {
			return "", errors.Join(extract.ErrExtraction, errors.New("bad"))
		}
		return string(data), nil
	})
	s, err := New(ex, layout.Monospace(1), testViewport)
	require.NoError(t, err)
	require.NoError(t, s.Upload(context.Background(), "first.txt", []byte(sampleDoc())))

	err = s.Upload(context.Background(), "second.pdf", []byte("junk"))
	assert.ErrorIs(t, err, extract.ErrExtraction)
	assert.Equal(t, "first.txt", s.Snapshot().Name)
}

func TestResumeFromStore(t *testing.T) {
	store := memStore{}
	s, _ := newSession(t, WithStore(store))
	require.NoError(t, s.Load("doc.txt", sampleDoc()))
	_, err := s.GoToWord(9)
	require.NoError(t, err)
	s.AdjustSpeed(-100 * time.Millisecond)
	s.Close()
	require.Len(t, store, 1)

	resumed, _ := newSession(t, WithStore(store))
	require.NoError(t, resumed.Load("doc.txt", sampleDoc()))
	snap := resumed.Snapshot()
	assert.Equal(t, 9, snap.CurrentWordIndex)
	assert.Equal(t, 2, snap.CurrentPage)
	assert.Equal(t, playback.Paused, snap.PlaybackState)
	assert.Equal(t, 150*time.Millisecond, snap.TickInterval)

	fresh, _ := newSession(t, WithStore(store), WithFresh(true))
	require.NoError(t, fresh.Load("doc.txt", sampleDoc()))
	assert.Equal(t, 0, fresh.Snapshot().CurrentWordIndex)
	assert.Equal(t, playback.DefaultInterval, fresh.Snapshot().TickInterval)
}

func TestRows(t *testing.T) {
	s, _ := newSession(t)
	require.NoError(t, s.Load("doc.txt", sampleDoc()))
	rows := s.Rows(2)
	require.Len(t, rows, 3)
	assert.Equal(t, 6, rows[0].FirstWord)
	assert.Equal(t, []string{"w3a", "w3b."}, rows[0].Words)
}

func TestOnChangeMayReadSnapshot(t *testing.T) {
	var s *Session
	var seen []int
	s, sched := newSession(t, WithOnChange(func(Snapshot) {
		seen = append(seen, s.Snapshot().CurrentWordIndex)
	}))
	require.NoError(t, s.Load("doc.txt", sampleDoc()))
	_, err := s.PlayPause()
	require.NoError(t, err)
	sched.fire(t, 2)
	assert.Equal(t, []int{1, 2}, seen[len(seen)-2:])
}
