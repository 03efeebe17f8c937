package sequencer_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"go-ripple/grid"
	"go-ripple/loop"
	"go-ripple/replica"
	"go-ripple/save"
	"go-ripple/sequencer"
	"go-ripple/tuning"
)

const (
	testSecret = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	peerSecret = "1f1e1d1c1b1a191817161514131211100f0e0d0c0b0a09080706050403020100"
)

type failingGateway struct {
	replica.Gateway
}

func (failingGateway) Set(save.Profile) error { return errors.New("offline") }

// peerDoc is a profile signed by the peer owning secret, and its id
func peerDoc(secret, name string) ([]byte, string) {
	id, err := replica.NewIdentity(secret)
	Expect(err).NotTo(HaveOccurred())
	p, err := id.Sign(save.Profile{
		ID:   id.PublicKey(),
		Name: name,
		Saves: []save.Record{{
			ID:              "s1",
			Name:            "peer beat",
			Tuning:          tuning.MinorPentatonic,
			Tempo:           90,
			ActiveGridItems: []grid.Coord{{I: 1, J: 1}},
		}},
	})
	Expect(err).NotTo(HaveOccurred())
	raw, err := save.Encode(p)
	Expect(err).NotTo(HaveOccurred())
	return raw, id.PublicKey()
}

var _ = Describe("Manager", func() {
	var (
		l     *loop.Loop
		mem   *replica.Memory
		store *replica.Store
		tone  *fakeTone
		m     *sequencer.Manager
	)

	BeforeEach(func() {
		l = loop.New(loop.NewManualClock(epoch))
		id, err := replica.NewIdentity(testSecret)
		Expect(err).NotTo(HaveOccurred())
		mem = replica.NewMemory()
		store = replica.NewStore(mem, id)
		tone = &fakeTone{}
		m = sequencer.NewManager(l, tone, store, sequencer.Options{Size: 8, Name: "me", Seed: true})
	})

	It("seeds the diagonal and lists only the local profile", func() {
		Expect(m.Grid().SerializeActive()).To(HaveLen(8))
		Expect(m.Grid().Enabled(0, 7)).To(BeTrue())

		profiles := m.Profiles()
		Expect(profiles).To(HaveLen(1))
		Expect(profiles[0].ID).To(Equal(store.PublicKey()))
		Expect(profiles[0].Name).To(Equal("me"))
	})

	It("ripples triggered cells on the board while playing", func() {
		Expect(m.Start()).To(Succeed())
		l.Drain()
		idx := m.Grid().Index(7, 0)
		Expect(m.Board().Marks(idx)).NotTo(BeZero())
		Expect(tone.triggers).To(HaveLen(1))

		m.Stop()
		Expect(m.Scheduler().Column()).To(Equal(0))
	})

	It("saves to the local profile and loads it back", func() {
		Expect(m.SetTempo(90)).To(Succeed())
		Expect(m.SetTuning(tuning.JapanesePentatonic)).To(Succeed())
		rec, err := m.Save("first")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.ID).NotTo(BeEmpty())
		Expect(rec.Tempo).To(Equal(90.0))

		raw, ok, err := store.Local()
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(save.Validate(raw)).To(BeTrue())

		m.Grid().ClearAll()
		Expect(m.SetTempo(150)).To(Succeed())
		Expect(m.SetTuning(tuning.MajorPentatonic)).To(Succeed())

		m.Load(rec)
		Expect(m.Grid().SerializeActive()).To(Equal(rec.ActiveGridItems))
		Expect(m.Scheduler().Tempo()).To(Equal(90.0))
		Expect(m.Scheduler().Tuning().Key).To(Equal(tuning.JapanesePentatonic))
		Expect(m.LocalProfile().Saves).To(HaveLen(1))
	})

	It("deletes saves from the local profile", func() {
		rec, err := m.Save("gone soon")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.DeleteSave(rec.ID)).To(Succeed())
		Expect(m.LocalProfile().Saves).To(BeEmpty())

		err = m.DeleteSave(rec.ID)
		Expect(errors.Is(err, sequencer.ErrNoSave)).To(BeTrue())
	})

	It("picks up peer profiles once the change reaches the loop", func() {
		raw, _ := peerDoc(peerSecret, "alice")
		Expect(store.Put(raw)).To(Succeed())
		Expect(m.Profiles()).To(HaveLen(1))

		l.Drain()
		profiles := m.Profiles()
		Expect(profiles).To(HaveLen(2))
		Expect(profiles[0].ID).To(Equal(store.PublicKey()))
		Expect(profiles[1].Name).To(Equal("alice"))
	})

	It("drops malformed and unsigned peer profiles", func() {
		Expect(store.Put([]byte(`{"id":"peer-b","name":"bob"}`))).To(MatchError(save.ErrInvalidProfile))

		Expect(mem.Store("peer-b", []byte(`{"id":"peer-b","name":"bob"}`))).To(Succeed())
		Expect(mem.Store("peer-c", []byte(`{"id":"peer-c","name":"carol","saves":[]}`))).To(Succeed())
		raw, _ := peerDoc(peerSecret, "alice")
		Expect(store.Put(raw)).To(Succeed())
		l.Drain()

		profiles := m.Profiles()
		Expect(profiles).To(HaveLen(2))
		Expect(profiles[1].Name).To(Equal("alice"))
	})

	It("never adopts a peer document as the local profile", func() {
		_, err := m.Save("mine")
		Expect(err).NotTo(HaveOccurred())

		_, peerID := peerDoc(peerSecret, "alice")
		doubled := []byte(`{"id":"` + peerID + `","name":"pwned","saves":[{"id":"x","name":"evil","tuning":"maj5","tempo":1,"activeGridItems":[]}],"id":"` + store.PublicKey() + `"}`)
		Expect(store.Put(doubled)).To(MatchError(save.ErrInvalidProfile))

		// Even if it reaches the backend under a peer's key
		Expect(mem.Store(peerID, doubled)).To(Succeed())
		raw, _ := peerDoc("0101010101010101010101010101010101010101010101010101010101010101", "carol")
		Expect(store.Put(raw)).To(Succeed())
		l.Drain()

		local := m.LocalProfile()
		Expect(local.Name).To(Equal("me"))
		Expect(local.Saves).To(HaveLen(1))
		Expect(local.Saves[0].Name).To(Equal("mine"))

		_, err = m.Save("second")
		Expect(err).NotTo(HaveOccurred())
		stored, _, err := store.Local()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(stored)).NotTo(ContainSubstring("pwned"))
		Expect(string(stored)).NotTo(ContainSubstring("evil"))
	})

	It("hides blocked peers until unblocked", func() {
		raw, peerID := peerDoc(peerSecret, "alice")
		Expect(store.Put(raw)).To(Succeed())
		l.Drain()

		Expect(m.Block(peerID)).To(Succeed())
		Expect(m.Profiles()).To(HaveLen(1))
		Expect(m.LocalProfile().Blocks).To(Equal([]save.Block{{Address: peerID, Name: "alice"}}))

		Expect(m.Block(peerID)).To(Succeed())
		Expect(m.LocalProfile().Blocks).To(HaveLen(1))

		Expect(m.Unblock(peerID)).To(Succeed())
		Expect(m.Profiles()).To(HaveLen(2))
		Expect(m.LocalProfile().Blocks).To(BeEmpty())
	})

	It("refuses to block the local peer", func() {
		Expect(m.Block(store.PublicKey())).To(MatchError(sequencer.ErrSelfBlock))
	})

	It("leaves the local profile untouched when publishing fails", func() {
		offline := sequencer.NewManager(l, tone, failingGateway{store}, sequencer.Options{Size: 8})
		_, err := offline.Save("lost")
		Expect(err).To(MatchError(ContainSubstring("offline")))
		Expect(offline.LocalProfile().Saves).To(BeEmpty())
	})

	It("applies tap tempo from the second tap", func() {
		_, ok := m.Tap()
		Expect(ok).To(BeFalse())
		l.Advance(500 * time.Millisecond)
		bpm, ok := m.Tap()
		Expect(ok).To(BeTrue())
		Expect(bpm).To(Equal(120.0))
		Expect(m.Scheduler().Tempo()).To(Equal(120.0))
	})

	It("cycles through the tunings", func() {
		Expect(m.CycleTuning()).To(Equal(tuning.Next(tuning.Default)))
	})
})
