// Package frameloop schedules render callbacks the way a display refresh
// does: a callback requested now runs once on the next frame, and a pending
// request can be cancelled by its handle.
package frameloop

import (
	"sort"
	"sync"
	"time"
)

// Handle identifies a pending frame request. Zero is never issued.
type Handle uint64

// Callback receives the frame timestamp.
type Callback func(now time.Time)

// Scheduler issues and cancels frame requests.
type Scheduler interface {
	RequestFrame(cb Callback) Handle
	CancelFrame(h Handle)
}

// queue is the request bookkeeping shared by Ticker and Manual.
type queue struct {
	mu      sync.Mutex
	next    Handle
	pending map[Handle]Callback
}

func (q *queue) request(cb Callback) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		q.pending = make(map[Handle]Callback)
	}
	q.next++
	q.pending[q.next] = cb
	return q.next
}

func (q *queue) cancel(h Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, h)
}

// due returns the handles pending at the start of a frame, oldest first.
// Requests made while the frame runs wait for the next one.
func (q *queue) due() []Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	hs := make([]Handle, 0, len(q.pending))
	for h := range q.pending {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// take removes and returns the callback for h if it is still pending, so a
// cancellation that lands mid-frame still prevents the call.
func (q *queue) take(h Handle) (Callback, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cb, ok := q.pending[h]
	if ok {
		delete(q.pending, h)
	}
	return cb, ok
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *queue) run(now time.Time) int {
	ran := 0
	for _, h := range q.due() {
		if cb, ok := q.take(h); ok {
			cb(now)
			ran++
		}
	}
	return ran
}

// ---------------------------------------------------------------------------
// Ticker
// ---------------------------------------------------------------------------

// Ticker runs frames from a time.Ticker on its own goroutine.
type Ticker struct {
	q    queue
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

var _ Scheduler = (*Ticker)(nil)

// NewTicker starts a scheduler running fps frames per second. fps <= 0
// means 60.
func NewTicker(fps int) *Ticker {
	if fps <= 0 {
		fps = 60
	}
	t := &Ticker{stop: make(chan struct{}), done: make(chan struct{})}
	go t.loop(time.Second / time.Duration(fps))
	return t
}

func (t *Ticker) loop(interval time.Duration) {
	defer close(t.done)
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-t.stop:
			return
		case now := <-tk.C:
			t.q.run(now)
		}
	}
}

func (t *Ticker) RequestFrame(cb Callback) Handle { return t.q.request(cb) }

func (t *Ticker) CancelFrame(h Handle) { t.q.cancel(h) }

// Pending returns the number of outstanding requests.
func (t *Ticker) Pending() int { return t.q.len() }

// Stop ends the frame goroutine and waits for it. Pending requests are
// dropped.
func (t *Ticker) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

// ---------------------------------------------------------------------------
// Manual
// ---------------------------------------------------------------------------

// Manual runs frames only when Step is called.
type Manual struct {
	q queue
}

var _ Scheduler = (*Manual)(nil)

// NewManual returns an idle manual scheduler.
func NewManual() *Manual { return &Manual{} }

func (m *Manual) RequestFrame(cb Callback) Handle { return m.q.request(cb) }

func (m *Manual) CancelFrame(h Handle) { m.q.cancel(h) }

// Pending returns the number of outstanding requests.
func (m *Manual) Pending() int { return m.q.len() }

// Step runs one frame at now and returns how many callbacks ran.
func (m *Manual) Step(now time.Time) int { return m.q.run(now) }

// ---------------------------------------------------------------------------
// Clock
// ---------------------------------------------------------------------------

// Clock measures the seconds between consecutive frames.
type Clock struct {
	last    time.Time
	started bool
}

// Delta returns the seconds since the previous call, or 0 on the first
// call or when time went backwards.
func (c *Clock) Delta(now time.Time) float64 {
	if !c.started {
		c.started = true
		c.last = now
		return 0
	}
	d := now.Sub(c.last).Seconds()
	c.last = now
	if d < 0 {
		return 0
	}
	return d
}

// Reset forgets the previous frame.
func (c *Clock) Reset() {
	c.started = false
}
