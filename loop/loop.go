package loop

import (
	"container/heap"
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Handle identifies a scheduled entry. The zero Handle is never issued.
type Handle uint64

// Loop is a single-threaded callback queue. Timers, user input and store
// notifications are all entries; whoever drains the loop runs them one at a
// time, so callbacks never overlap. Scheduling is safe from any goroutine.
type Loop struct {
	clock Clock
	log   log.FieldLogger

	mu     sync.Mutex
	q      queue
	live   map[Handle]*entry
	nextID Handle
	seq    uint64

	wake chan struct{} // nudges Run when something earlier is scheduled
}

// New creates a loop reading time from clock
func New(clock Clock) *Loop {
	if clock == nil {
		clock = Real()
	}
	return &Loop{
		clock: clock,
		log:   log.StandardLogger(),
		live:  make(map[Handle]*entry),
		wake:  make(chan struct{}, 1),
	}
}

// SetLogger replaces the logger used for recovered callback panics
func (l *Loop) SetLogger(logger log.FieldLogger) {
	l.log = logger
}

// Now returns the loop's clock time
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Post queues fn to run on the next drain
func (l *Loop) Post(fn func()) Handle {
	return l.schedule(0, 0, fn)
}

// After runs fn once, d from now
func (l *Loop) After(d time.Duration, fn func()) Handle {
	return l.schedule(d, 0, fn)
}

// Every runs fn every interval, first at now+interval
func (l *Loop) Every(interval time.Duration, fn func()) Handle {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return l.schedule(interval, interval, fn)
}

func (l *Loop) schedule(d, every time.Duration, fn func()) Handle {
	l.mu.Lock()
	l.nextID++
	l.seq++
	e := &entry{
		id:    l.nextID,
		at:    l.clock.Now().Add(d),
		seq:   l.seq,
		every: every,
		fn:    fn,
	}
	heap.Push(&l.q, e)
	l.live[e.id] = e
	l.mu.Unlock()

	l.nudge()
	return e.id
}

// Cancel removes an entry. Returns false if it already ran or was cancelled.
func (l *Loop) Cancel(h Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.live[h]
	if !ok {
		return false
	}
	delete(l.live, h)
	l.q.remove(e)
	return true
}

// Live reports whether an entry is still scheduled
func (l *Loop) Live(h Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.live[h]
	return ok
}

// Pending returns the number of scheduled entries
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}

// Repeating returns the number of live repeating entries
func (l *Loop) Repeating() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.live {
		if e.every > 0 {
			n++
		}
	}
	return n
}

// next pops the earliest entry due at or before now
func (l *Loop) next(now time.Time) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.q.peek()
	if e == nil || e.at.After(now) {
		return nil
	}
	heap.Pop(&l.q)
	if e.every == 0 {
		delete(l.live, e.id)
	}
	return e
}

// reschedule puts a repeating entry back unless it was cancelled while running
func (l *Loop) reschedule(e *entry, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.live[e.id]; !ok {
		return
	}
	e.at = e.at.Add(e.every)
	// Fell behind (stalled drain): skip missed ticks rather than bursting
	if !e.at.After(now) {
		e.at = now.Add(e.every)
	}
	l.seq++
	e.seq = l.seq
	heap.Push(&l.q, e)
}

// Drain runs every entry due at the clock's current time and returns how
// many ran. Entries scheduled by callbacks for "now" run in the same drain.
func (l *Loop) Drain() int {
	return l.drainUntil(l.clock.Now())
}

func (l *Loop) drainUntil(now time.Time) int {
	ran := 0
	for {
		e := l.next(now)
		if e == nil {
			return ran
		}
		l.run(e)
		ran++
		if e.every > 0 {
			l.reschedule(e, now)
		}
	}
}

func (l *Loop) run(e *entry) {
	defer func() {
		if r := recover(); r != nil {
			l.log.WithField("entry", e.id).Errorf("loop callback panicked: %v", r)
		}
	}()
	e.fn()
}

// Advance walks a ManualClock forward by d, stopping at each deadline on the
// way so callbacks see the time they were due. Panics on a real clock.
func (l *Loop) Advance(d time.Duration) int {
	mc, ok := l.clock.(*ManualClock)
	if !ok {
		panic("loop: Advance requires a ManualClock")
	}

	target := mc.Now().Add(d)
	ran := 0
	for {
		l.mu.Lock()
		e := l.q.peek()
		var at time.Time
		if e != nil {
			at = e.at
		}
		l.mu.Unlock()

		if e == nil || at.After(target) {
			break
		}
		mc.Set(at)
		ran += l.drainUntil(at)
	}
	mc.Set(target)
	return ran + l.drainUntil(target)
}

// Run drains the loop in real time until ctx is done
func (l *Loop) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		l.Drain()

		wait := time.Hour
		l.mu.Lock()
		if e := l.q.peek(); e != nil {
			wait = e.at.Sub(l.clock.Now())
		}
		l.mu.Unlock()
		if wait < 0 {
			wait = 0
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		case <-timer.C:
		}
	}
}

func (l *Loop) nudge() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
