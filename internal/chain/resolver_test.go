package chain_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/cascade/internal/chain"
	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/particles"
	"github.com/san-kum/cascade/internal/tables"
)

const bins = 4

var energies = []float64{1, 10, 100, 1000}

type key struct{ rows, cols particles.Range }

type recorder struct {
	blocks map[key]*mat.Dense
}

func newRecorder() *recorder { return &recorder{blocks: make(map[key]*mat.Dense)} }

func (r *recorder) Accumulate(rows, cols particles.Range, block *mat.Dense) {
	k := key{rows, cols}
	if b, ok := r.blocks[k]; ok {
		b.Add(b, block)
		return
	}
	r.blocks[k] = mat.DenseCopyOf(block)
}

func (r *recorder) diag(rows, cols *particles.Species) []float64 {
	b, ok := r.blocks[key{rows.Block(), cols.Block()}]
	if !ok {
		return []float64{0, 0, 0, 0}
	}
	out := make([]float64, bins)
	for i := range out {
		out[i] = b.At(i, i)
	}
	return out
}

func (r *recorder) has(rows, cols *particles.Species) bool {
	_, ok := r.blocks[key{rows.Block(), cols.Block()}]
	return ok
}

func scaled(f float64) *mat.Dense {
	m := mat.NewDense(bins, bins, nil)
	for i := 0; i < bins; i++ {
		m.Set(i, i, f)
	}
	return m
}

var catalog = []particles.Entry{
	{ID: 2212, Name: "p+", Mass: 0.938},
	{ID: 211, Name: "pi+", Mass: 0.1396, CTau: 780.45},
	{ID: 221, Name: "eta", Mass: 0.548, CTau: 1.5e-10, ForceResonance: true},
	{ID: 113, Name: "rho0", Mass: 0.775, CTau: 1.3e-13, ForceResonance: true},
	{ID: 14, Name: "numu", Lepton: true},
	{ID: -13, Name: "mu+", Mass: 0.1057, CTau: 65865, Lepton: true},
}

type fixture struct {
	idx      *particles.Index
	resolver *chain.Resolver
	decays   *tables.Decays
}

func build(xs particles.CrossSections, observers []int) fixture {
	decays := tables.NewDecays(bins)
	Expect(decays.Add(211, 14, scaled(1))).To(Succeed())
	Expect(decays.Add(211, -13, scaled(1))).To(Succeed())
	Expect(decays.Add(221, 211, scaled(0.5))).To(Succeed())
	Expect(decays.Add(113, 221, scaled(1))).To(Succeed())

	yields := tables.NewYields(bins)
	Expect(yields.Add(2212, 211, scaled(1))).To(Succeed())
	Expect(yields.Add(2212, 221, scaled(2))).To(Succeed())
	Expect(yields.Add(2212, 113, scaled(1))).To(Succeed())

	opts := particles.DefaultOptions()
	opts.Projectiles = yields.Projectiles()
	idx, err := particles.Build(catalog, energies, xs, opts)
	Expect(err).NotTo(HaveOccurred())

	cfg := particles.DefaultRoutingConfig()
	cfg.Observers = observers
	routing, err := particles.NewRouting(idx, cfg)
	Expect(err).NotTo(HaveOccurred())

	return fixture{idx: idx, resolver: chain.New(idx, routing, decays, yields), decays: decays}
}

func (f fixture) species(name string) *particles.Species {
	s, err := f.idx.ByName(name)
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Resolver", func() {
	var f fixture

	BeforeEach(func() {
		f = build(nil, nil)
	})

	Describe("Decays", func() {
		It("routes pion decays into the pion alias buckets only", func() {
			rec := newRecorder()
			hops, err := f.resolver.Decays(f.species("pi+"), rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(hops).To(Equal(2))

			pi := f.species("pi+")
			Expect(rec.diag(f.species("pi_numu"), pi)).To(Equal([]float64{1, 1, 1, 1}))
			Expect(rec.diag(f.species("pi_mu+"), pi)).To(Equal([]float64{1, 1, 1, 1}))
			Expect(rec.has(f.species("numu"), pi)).To(BeFalse())
			Expect(rec.has(f.species("mu+"), pi)).To(BeFalse())
		})

		It("skips species without daughters", func() {
			rec := newRecorder()
			hops, err := f.resolver.Decays(f.species("p+"), rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(hops).To(BeZero())
			Expect(rec.blocks).To(BeEmpty())
		})

		It("skips resonances, which own no state block", func() {
			rec := newRecorder()
			hops, err := f.resolver.Decays(f.species("eta"), rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(hops).To(BeZero())
		})

		It("scores observed mothers additionally", func() {
			f = build(nil, []int{211})
			rec := newRecorder()
			_, err := f.resolver.Decays(f.species("pi+"), rec)
			Expect(err).NotTo(HaveOccurred())

			pi := f.species("pi+")
			Expect(rec.diag(f.species("obs_numu"), pi)).To(Equal([]float64{1, 1, 1, 1}))
			Expect(rec.diag(f.species("pi_numu"), pi)).To(Equal([]float64{1, 1, 1, 1}))
		})

		It("reports daughters missing from the index", func() {
			Expect(f.decays.Add(211, 999, scaled(1))).To(Succeed())
			_, err := f.resolver.Decays(f.species("pi+"), newRecorder())
			Expect(err).To(MatchError(dynamo.ErrNotFound))
		})
	})

	Describe("Interactions", func() {
		It("folds resonance chains into the tracked daughters", func() {
			rec := newRecorder()
			hops, err := f.resolver.Interactions(f.species("p+"), rec)
			Expect(err).NotTo(HaveOccurred())
			// eta→pi+ from the eta secondary, rho0→eta and eta→pi+ from rho0.
			Expect(hops).To(Equal(3))

			// direct 1 + eta 2·0.5 + rho0 1·1·0.5
			Expect(rec.diag(f.species("pi+"), f.species("p+"))).To(Equal([]float64{2.5, 2.5, 2.5, 2.5}))
		})

		It("ignores non-projectiles", func() {
			hops, err := f.resolver.Interactions(f.species("pi+"), newRecorder())
			Expect(err).NotTo(HaveOccurred())
			Expect(hops).To(BeZero())
		})

		Context("with a mixed pion", func() {
			BeforeEach(func() {
				xs := tables.CrossSectionTable{211: {0.01, 0.01, 0.01, 0.01}}
				f = build(xs, nil)
			})

			It("splits pion production between propagation and in-place decay", func() {
				pi := f.species("pi+")
				Expect(pi.Class).To(Equal(particles.Mixed))
				Expect(pi.MixIdx).To(Equal(1))

				rec := newRecorder()
				_, err := f.resolver.Interactions(f.species("p+"), rec)
				Expect(err).NotTo(HaveOccurred())

				p := f.species("p+")
				// bin 0 pions decay in place, from direct production (1) and eta/rho0 (1.5)
				Expect(rec.diag(pi, p)).To(Equal([]float64{0, 2.5, 2.5, 2.5}))
				Expect(rec.diag(f.species("pi_numu"), p)).To(Equal([]float64{2.5, 0, 0, 0}))
				Expect(rec.diag(f.species("pi_mu+"), p)).To(Equal([]float64{2.5, 0, 0, 0}))
			})

			It("starts decays at the first propagating bin", func() {
				rec := newRecorder()
				_, err := f.resolver.Decays(f.species("pi+"), rec)
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.diag(f.species("pi_numu"), f.species("pi+"))).To(Equal([]float64{0, 1, 1, 1}))
			})
		})
	})
})
