// Package playback advances the global word pointer on a timer and turns
// pages when the current page's word capacity is used up.
package playback

import (
	"sync"
	"time"

	"github.com/metcalfc/prr/internal/layout"
)

// State is the playback state.
type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

const (
	DefaultInterval = 250 * time.Millisecond
	MinInterval     = 50 * time.Millisecond
	MaxInterval     = 1000 * time.Millisecond
	SpeedStep       = 50 * time.Millisecond
)

// ClampInterval bounds d to [MinInterval, MaxInterval].
func ClampInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}

// Controller is the playback state machine for one document session.
// It is safe for concurrent use; scheduled ticks take the same lock as
// every other method.
type Controller struct {
	mu sync.Mutex

	sched    Scheduler
	state    State
	interval time.Duration
	timer    Timer
	gen      uint64

	pages    []layout.Page
	total    int
	word     int
	page     int
	consumed int
	resync   bool

	notify func()
}

// NewController returns an idle controller ticking every interval.
func NewController(sched Scheduler, interval time.Duration) *Controller {
	if sched == nil {
		sched = SystemScheduler
	}
	return &Controller{
		sched:    sched,
		interval: ClampInterval(interval),
		page:     1,
	}
}

// OnChange registers fn to run after every scheduled tick. fn runs
// without the controller lock held.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// Load stops playback and resets to the start of a new layout.
func (c *Controller) Load(pages []layout.Page, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.state = Idle
	c.pages = pages
	c.total = total
	c.word = 0
	c.page = 1
	c.consumed = 0
	c.resync = false
}

// Reset stops any timer and discards the layout.
func (c *Controller) Reset() {
	c.Load(nil, 0)
}

// Play starts the timer. It reports false when there is nothing to play.
func (c *Controller) Play() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.total == 0 {
		return false
	}
	if c.resync {
		c.resyncLocked()
	}
	c.stopLocked()
	c.state = Playing
	c.scheduleLocked()
	return true
}

// Pause stops the timer, keeping the current word.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Playing {
		return
	}
	c.stopLocked()
	c.state = Paused
}

// Toggle switches between playing and paused and returns the new state.
func (c *Controller) Toggle() State {
	c.mu.Lock()
	playing := c.state == Playing
	c.mu.Unlock()
	if playing {
		c.Pause()
	} else {
		c.Play()
	}
	return c.State()
}

// AdjustSpeed changes the tick interval by delta, clamped. The pending
// tick keeps its old interval; the change applies from the next one.
func (c *Controller) AdjustSpeed(delta time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = ClampInterval(c.interval + delta)
	return c.interval
}

// SetInterval replaces the tick interval, clamped.
func (c *Controller) SetInterval(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = ClampInterval(d)
	return c.interval
}

// Seek positions playback at word on page. An idle controller becomes
// paused; a playing one keeps playing from the new word.
func (c *Controller) Seek(word, page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.total == 0 {
		return
	}
	c.word = word
	c.page = page
	c.resync = false
	c.consumed = word - c.pageLocked().FirstWord
	if c.state == Idle {
		c.state = Paused
	}
}

// SetPage shows page. When the word is not on that page, a playing
// controller continues from the page's first word and a paused one
// starts there on the next Play.
func (c *Controller) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.total == 0 {
		return
	}
	c.page = page
	c.resync = !c.pageLocked().Contains(c.word)
	if c.resync && c.state == Playing {
		c.resyncLocked()
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Interval returns the current tick interval.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Position returns the current global word and 1-based page.
func (c *Controller) Position() (word, page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.word, c.page
}

func (c *Controller) pageLocked() layout.Page {
	if c.page < 1 || c.page > len(c.pages) {
		return layout.Page{}
	}
	return c.pages[c.page-1]
}

func (c *Controller) resyncLocked() {
	c.word = c.pageLocked().FirstWord
	c.consumed = 0
	c.resync = false
}

func (c *Controller) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// Invalidate any tick already dequeued by the runtime.
	c.gen++
}

func (c *Controller) scheduleLocked() {
	gen := c.gen
	c.timer = c.sched.AfterFunc(c.interval, func() { c.tick(gen) })
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != Playing {
		c.mu.Unlock()
		return
	}
	c.advanceLocked()
	if c.state == Playing {
		c.scheduleLocked()
	}
	notify := c.notify
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (c *Controller) advanceLocked() {
	if c.word < c.total-1 {
		c.word++
		c.consumed++
		if c.consumed >= c.pageLocked().WordCount && c.page < len(c.pages) {
			c.page++
			c.consumed = 0
		}
	}
	if c.word >= c.total-1 {
		c.stopLocked()
		c.state = Paused
	}
}
