package sequencer_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"go-ripple/grid"
	"go-ripple/loop"
	"go-ripple/sequencer"
	"go-ripple/tuning"
)

type fakeTone struct {
	initErr  error
	inits    int
	triggers []tuning.Pitch
}

func (f *fakeTone) Init() error {
	f.inits++
	return f.initErr
}

func (f *fakeTone) Trigger(p tuning.Pitch) {
	f.triggers = append(f.triggers, p)
}

type fakeAnim struct {
	cells []grid.Coord
	panic bool
}

func (f *fakeAnim) Trigger(i, j int) error {
	if f.panic {
		panic("boom")
	}
	f.cells = append(f.cells, grid.Coord{I: i, J: j})
	return nil
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var _ = Describe("Interval", func() {
	DescribeTable("maps tempo to tick length",
		func(bpm float64, want time.Duration) {
			Expect(sequencer.Interval(bpm)).To(Equal(want))
		},
		Entry("150 bpm", 150.0, 200*time.Millisecond),
		Entry("60 bpm", 60.0, 500*time.Millisecond),
		Entry("300 bpm", 300.0, 100*time.Millisecond),
	)
})

var _ = Describe("Scheduler", func() {
	var (
		l     *loop.Loop
		g     *grid.Grid
		tone  *fakeTone
		anim  *fakeAnim
		sched *sequencer.Scheduler
		cols  []int
	)

	BeforeEach(func() {
		l = loop.New(loop.NewManualClock(epoch))
		g = grid.New(4)
		tone = &fakeTone{}
		anim = &fakeAnim{}
		sched = sequencer.NewScheduler(g, tone, anim, l)
		cols = nil
		sched.OnColumn = func(c int) { cols = append(cols, c) }
	})

	It("starts stopped at column 0 and the default tempo", func() {
		Expect(sched.Running()).To(BeFalse())
		Expect(sched.Column()).To(Equal(0))
		Expect(sched.Tempo()).To(BeEquivalentTo(sequencer.DefaultTempo))
		Expect(sched.Tuning().Key).To(Equal(tuning.Default))
	})

	It("plays the current column immediately on Start", func() {
		Expect(g.Toggle(1, 0)).To(Succeed())
		Expect(sched.Start()).To(Succeed())

		Expect(cols).To(Equal([]int{0}))
		Expect(anim.cells).To(Equal([]grid.Coord{{I: 1, J: 0}}))
		want, _ := sched.Tuning().Note(1)
		Expect(tone.triggers).To(Equal([]tuning.Pitch{want}))
	})

	It("advances one column per tick and wraps after N ticks", func() {
		Expect(sched.Start()).To(Succeed())
		for k := 1; k <= 4; k++ {
			l.Advance(sched.Interval())
			Expect(sched.Column()).To(Equal(k % 4))
		}
		Expect(cols).To(Equal([]int{0, 1, 2, 3, 0}))
	})

	It("keeps a single tick registration when started twice", func() {
		Expect(g.Toggle(0, 0)).To(Succeed())
		Expect(sched.Start()).To(Succeed())
		Expect(sched.Start()).To(Succeed())

		Expect(l.Repeating()).To(Equal(1))
		Expect(anim.cells).To(HaveLen(1))

		l.Advance(sched.Interval())
		Expect(cols).To(Equal([]int{0, 1}))
	})

	It("rewinds to column 0 on Stop and stops ticking", func() {
		Expect(sched.Start()).To(Succeed())
		l.Advance(2 * sched.Interval())
		Expect(sched.Column()).To(Equal(2))

		sched.Stop()
		Expect(sched.Column()).To(Equal(0))
		Expect(sched.Running()).To(BeFalse())
		Expect(l.Repeating()).To(Equal(0))

		l.Advance(time.Second)
		Expect(cols).To(Equal([]int{0, 1, 2}))
	})

	It("re-registers at the new interval without rewinding on tempo change", func() {
		Expect(sched.Start()).To(Succeed())
		l.Advance(sched.Interval())
		Expect(sched.Column()).To(Equal(1))

		Expect(sched.SetTempo(300)).To(Succeed())
		Expect(sched.Column()).To(Equal(1))
		Expect(l.Repeating()).To(Equal(1))
		Expect(cols).To(Equal([]int{0, 1}))

		l.Advance(100 * time.Millisecond)
		Expect(sched.Column()).To(Equal(2))
	})

	It("rejects a non-positive tempo", func() {
		err := sched.SetTempo(0)
		Expect(errors.Is(err, sequencer.ErrInvalidTempo)).To(BeTrue())
		Expect(sched.Tempo()).To(BeEquivalentTo(sequencer.DefaultTempo))
	})

	It("keeps the current tuning for an unknown key", func() {
		Expect(sched.SetTuning(tuning.WholeTone)).To(Succeed())
		err := sched.SetTuning("lydian")
		Expect(errors.Is(err, tuning.ErrUnknown)).To(BeTrue())
		Expect(sched.Tuning().Key).To(Equal(tuning.WholeTone))
	})

	It("returns tone init failures and retries on the next Start", func() {
		tone.initErr = errors.New("no port")
		Expect(sched.Start()).To(MatchError(ContainSubstring("no port")))
		Expect(sched.Running()).To(BeFalse())
		Expect(l.Repeating()).To(Equal(0))

		tone.initErr = nil
		Expect(sched.Start()).To(Succeed())
		Expect(tone.inits).To(Equal(2))

		Expect(sched.Start()).To(Succeed())
		Expect(tone.inits).To(Equal(2))
	})

	It("keeps ticking after a tick panics", func() {
		Expect(g.Toggle(0, 1)).To(Succeed())
		anim.panic = true
		Expect(sched.Start()).To(Succeed())

		l.Advance(sched.Interval())
		l.Advance(sched.Interval())
		Expect(sched.Column()).To(Equal(2))
		Expect(sched.Running()).To(BeTrue())
	})
})

var _ = Describe("TapTempo", func() {
	var (
		clock *loop.ManualClock
		tap   *sequencer.TapTempo
	)

	BeforeEach(func() {
		clock = loop.NewManualClock(epoch)
		tap = sequencer.NewTapTempo(clock)
	})

	step := func(d time.Duration) {
		clock.Set(clock.Now().Add(d))
	}

	It("needs two taps", func() {
		_, ok := tap.Tap()
		Expect(ok).To(BeFalse())
	})

	It("averages the gaps between taps", func() {
		tap.Tap()
		step(500 * time.Millisecond)
		bpm, ok := tap.Tap()
		Expect(ok).To(BeTrue())
		Expect(bpm).To(Equal(120.0))

		step(400 * time.Millisecond)
		bpm, _ = tap.Tap()
		Expect(bpm).To(Equal(133.0))
	})

	It("only keeps the last four taps", func() {
		tap.Tap()
		step(time.Second)
		for i := 0; i < 4; i++ {
			tap.Tap()
			step(250 * time.Millisecond)
		}
		bpm, _ := tap.Tap()
		Expect(bpm).To(Equal(240.0))
	})

	It("starts over after a long pause", func() {
		tap.Tap()
		step(6 * time.Second)
		_, ok := tap.Tap()
		Expect(ok).To(BeFalse())
	})
})
