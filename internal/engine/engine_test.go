package engine_test

import (
	"context"
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/cascade/internal/atmosphere"
	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/engine"
	"github.com/san-kum/cascade/internal/particles"
	"github.com/san-kum/cascade/internal/tables"
)

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}

func blockSum(ops interface{ At(i, j int) float64 }, rows particles.Range, col int) float64 {
	s := 0.0
	for r := rows.Lo; r < rows.Hi; r++ {
		s += ops.At(r, col)
	}
	return s
}

var _ = Describe("RunState", func() {
	ctx := context.Background()

	It("lays out every tracked species on the toy grid", func() {
		Expect(base.Index.Bins()).To(Equal(45))
		Expect(base.Index.Dim()).To(Equal(len(base.Index.Cascade()) * 45))
		Expect(base.Ops.Dim).To(Equal(base.Index.Dim()))
		Expect(base.Config.InteractionModel).To(Equal(tables.DefaultModel))
		Expect(base.Config.PrimaryTag).To(Equal("H3a"))
	})

	It("routes pion decays into the pi_ buckets only", func() {
		pi, err := base.Index.ByName("pi+")
		Expect(err).NotTo(HaveOccurred())
		numu, _ := base.Index.ByName("numu")
		piNumu, _ := base.Index.ByName("pi_numu")
		mu, _ := base.Index.ByName("mu+")
		piMu, _ := base.Index.ByName("pi_mu+")

		col := pi.Upper() - 1
		Expect(blockSum(base.Ops.Dec, numu.Block(), col)).To(BeZero())
		Expect(blockSum(base.Ops.Dec, mu.Block(), col)).To(BeZero())
		Expect(blockSum(base.Ops.Dec, piNumu.Block(), col)).To(BeNumerically(">", 0))
		Expect(blockSum(base.Ops.Dec, piMu.Block(), col)).To(BeNumerically(">", 0))
	})

	It("returns the same state for an unchanged zenith angle", func() {
		same, err := base.WithZenith(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(same).To(BeIdenticalTo(base))

		p1, err := base.Path(nil)
		Expect(err).NotTo(HaveOccurred())
		p2, err := same.Path(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(p2).To(BeIdenticalTo(p1))
	})

	It("plans longer paths for inclined showers", func() {
		inclined, err := base.WithZenith(60)
		Expect(err).NotTo(HaveOccurred())
		Expect(inclined.Ops).To(BeIdenticalTo(base.Ops))
		Expect(inclined.Atmosphere.SurfaceDepth()).To(BeNumerically(">", 1.9*base.Atmosphere.SurfaceDepth()))

		vertical, _ := base.Path(nil)
		slanted, err := inclined.Path(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(slanted.Steps()).To(BeNumerically(">", vertical.Steps()))
		Expect(base.Config.ZenithDeg).To(BeZero())
	})

	It("rebuilds operators for another interaction model", func() {
		soft, err := base.WithInteractionModel(ctx, "toy-soft")
		Expect(err).NotTo(HaveOccurred())
		Expect(soft.Ops).NotTo(BeIdenticalTo(base.Ops))
		Expect(soft.Config.InteractionModel).To(Equal("toy-soft"))
		Expect(soft.Initial).To(HaveLen(soft.Index.Dim()))
		Expect(base.Config.InteractionModel).To(Equal("toy"))

		_, err = base.WithInteractionModel(ctx, "sibyll")
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})

	It("keeps operators when only the primary changes", func() {
		pl, err := base.WithPrimary("PowerLaw", "2.7")
		Expect(err).NotTo(HaveOccurred())
		Expect(pl.Ops).To(BeIdenticalTo(base.Ops))
		Expect(pl.Initial).NotTo(Equal(base.Initial))

		_, err = base.WithPrimary("GSF", "")
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})

	It("resolves observers by name or id", func() {
		obs, err := base.WithObservers(ctx, []string{"K+", "-321"})
		Expect(err).NotTo(HaveOccurred())
		Expect(obs.Routing.ObserverCount()).To(BeNumerically(">", 0))

		sol, err := obs.Solve(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		f, err := sol.Flux("obs_numu", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum(f)).To(BeNumerically(">", 0))

		_, err = base.WithObservers(ctx, []string{"B0"})
		Expect(err).To(MatchError(dynamo.ErrNotFound))
	})

	It("rejects unknown atmospheres", func() {
		_, err := base.WithAtmosphere(engine.AtmosphereConfig{Kind: "MSIS00"})
		Expect(err).To(MatchError(dynamo.ErrConfiguration))

		iso, err := base.WithAtmosphere(engine.AtmosphereConfig{Kind: atmosphere.KindIsothermal})
		Expect(err).NotTo(HaveOccurred())
		Expect(iso.Planner).NotTo(BeIdenticalTo(base.Planner))
	})

	It("starts from a single primary", func() {
		st, err := base.WithSinglePrimary(1e5, 14)
		Expect(err).NotTo(HaveOccurred())
		p, _ := base.Index.ByName("p+")
		Expect(sum(st.Initial[p.Lower():p.Upper()])).To(BeNumerically(">", 0))
		Expect(sum(st.Initial)).To(Equal(sum(st.Initial[p.Lower():p.Upper()])))

		_, err = base.WithInitialState(dynamo.State{1})
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})
})

var _ = Describe("Solve", func() {
	ctx := context.Background()

	It("is idempotent", func() {
		first, err := base.Solve(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		second, err := base.Solve(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Final).To(Equal(first.Final))
		Expect(second.Steps).To(Equal(first.Steps))
	})

	It("sums alias buckets into total_ and conv_ fluxes", func() {
		sol, err := base.Solve(ctx, nil)
		Expect(err).NotTo(HaveOccurred())

		for _, lepton := range []string{"mu+", "numu", "antinue"} {
			total, err := sol.Flux("total_"+lepton, 0)
			Expect(err).NotTo(HaveOccurred())
			conv, err := sol.Flux("conv_"+lepton, 0)
			Expect(err).NotTo(HaveOccurred())

			parts := make([][]float64, 0, 4)
			for _, prefix := range []string{"pr_", "pi_", "k_", ""} {
				f, err := sol.Flux(prefix+lepton, 0)
				Expect(err).NotTo(HaveOccurred())
				parts = append(parts, f)
			}
			for i := range total {
				want := parts[0][i] + parts[1][i] + parts[2][i] + parts[3][i]
				Expect(total[i]).To(BeNumerically("~", want, 1e-12*math.Abs(want)+1e-300))
				Expect(conv[i]).To(BeNumerically("~", total[i]-parts[0][i], 1e-9*math.Abs(total[i])+1e-300))
			}
			Expect(sum(total)).To(BeNumerically(">", 0))
		}
	})

	It("weights fluxes by E^mag", func() {
		sol, err := base.Solve(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		plain, _ := sol.Flux("p+", 0)
		weighted, err := sol.Flux("p+", 3)
		Expect(err).NotTo(HaveOccurred())
		E := sol.Energies()
		for i := range plain {
			Expect(weighted[i]).To(BeNumerically("~", plain[i]*E[i]*E[i]*E[i], 1e-9*math.Abs(weighted[i])+1e-300))
		}

		_, err = sol.Flux("total_gluon", 0)
		Expect(err).To(MatchError(dynamo.ErrNotFound))
		_, err = sol.Flux("eta", 0)
		Expect(err).To(MatchError(dynamo.ErrNotFound))
	})

	It("records snapshots at requested depths", func() {
		sol, err := base.Solve(ctx, []float64{100, 500})
		Expect(err).NotTo(HaveOccurred())
		Expect(sol.Snapshots).To(HaveLen(2))

		// The top bin only loses nucleons.
		top := func(snapshot int) float64 {
			var p, n []float64
			if snapshot < 0 {
				p, _ = sol.Flux("p+", 0)
				n, _ = sol.Flux("n0", 0)
			} else {
				p, err = sol.FluxAt("p+", 0, snapshot)
				Expect(err).NotTo(HaveOccurred())
				n, err = sol.FluxAt("n0", 0, snapshot)
				Expect(err).NotTo(HaveOccurred())
			}
			last := len(p) - 1
			return p[last] + n[last]
		}
		Expect(top(0)).To(BeNumerically(">", top(1)))
		Expect(top(1)).To(BeNumerically(">", top(-1)))

		_, err = sol.FluxAt("p+", 0, 2)
		Expect(err).To(MatchError(dynamo.ErrNotFound))
	})

	It("rejects configurations before stepping", func() {
		cfg := base.Config

		cfg.Kernel = "blas"
		st, err := engine.Build(ctx, cfg, engine.UseDatabase(base.Tables))
		Expect(err).NotTo(HaveOccurred())
		_, err = st.Solve(ctx, nil)
		Expect(err).To(MatchError(dynamo.ErrConfiguration))

		cfg = base.Config
		cfg.GridVar = "E"
		st, err = engine.Build(ctx, cfg, engine.UseDatabase(base.Tables))
		Expect(err).NotTo(HaveOccurred())
		_, err = st.Solve(ctx, []float64{100})
		Expect(err).To(MatchError(dynamo.ErrConfiguration))

		cfg = base.Config
		cfg.Integrator = "rk45"
		st, err = engine.Build(ctx, cfg, engine.UseDatabase(base.Tables))
		Expect(err).NotTo(HaveOccurred())
		_, err = st.Solve(ctx, []float64{100})
		Expect(err).To(MatchError(dynamo.ErrConfiguration))

		cfg = base.Config
		cfg.Integrator = "leapfrog"
		_, err = engine.Build(ctx, cfg)
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})

	It("returns the context error when cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := base.Solve(cctx, nil)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("solves several angles concurrently", func() {
		sols, err := engine.SolveAngles(ctx, base, []float64{0, 30, 60}, nil, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(sols).To(HaveLen(3))
		Expect(sols[1].Zenith).To(Equal(30.0))

		vertical, err := base.Solve(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(sols[0].Final).To(Equal(vertical.Final))
		Expect(sols[2].Steps).To(BeNumerically(">", sols[0].Steps))

		_, err = engine.SolveAngles(ctx, base, []float64{0, 95}, nil, 0)
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})
})

var _ = Describe("Run", func() {
	ctx := context.Background()

	It("requires a built state", func() {
		var r engine.Run
		_, err := r.Solve(ctx, nil)
		Expect(err).To(MatchError(dynamo.ErrPrecondition))
		Expect(r.SetZenithAngle(30)).To(MatchError(dynamo.ErrPrecondition))

		r2 := engine.NewRun(base)
		_, err = r2.Flux("p+", 0, -1)
		Expect(err).To(MatchError(dynamo.ErrPrecondition))
	})

	It("keeps the previous solution when a solve fails", func() {
		r := engine.NewRun(base)
		sol, err := r.Solve(ctx, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(r.SetZenithAngle(45)).To(Succeed())
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = r.Solve(cctx, nil)
		Expect(err).To(HaveOccurred())
		Expect(r.Solution()).To(BeIdenticalTo(sol))

		f, err := r.Flux("total_numu", 0, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum(f)).To(BeNumerically(">", 0))
	})

	It("applies model selections to the next solve", func() {
		r := engine.NewRun(base)
		Expect(r.SelectInteractionModel(ctx, "toy-soft")).To(Succeed())
		Expect(r.SelectPrimaryModel("HillasGaisser2012", "H4a")).To(Succeed())
		Expect(r.SetObserverSpecies(ctx, []string{"D+"})).To(Succeed())
		Expect(r.SelectPrimaryModel("HillasGaisser2012", "H9")).To(MatchError(dynamo.ErrConfiguration))

		st := r.State()
		Expect(st.Config.InteractionModel).To(Equal("toy-soft"))
		Expect(st.Config.PrimaryTag).To(Equal("H4a"))
		Expect(st.Config.Observers).To(Equal([]string{"D+"}))

		counter := &stepCounter{}
		r.AddObserver(counter)
		sol, err := r.Solve(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(counter.steps).To(Equal(sol.Steps))
	})
})

type stepCounter struct{ steps int }

func (c *stepCounter) OnStep(step, total int, X float64) { c.steps = step }

const twoSpecies = `
energy_grid: {min: 1.0, max: 100.0, per_decade: 1}
species:
  - {pdg: 2212, name: p+, mass: 0.938272, ctau: 0}
  - {pdg: 999, name: A, mass: 1.0, ctau: 3.0e6}
  - {pdg: 22, name: B, mass: 0, ctau: 0, lepton: true}
decays:
  - {mother: 999, daughter: 22, fraction: 1.0, spectrum: {kind: delta}}
interaction_models:
  none: {}
`

var _ = Describe("two-species decay", func() {
	ctx := context.Background()

	DescribeTable("reproduces exp(-Λ·L) at the surface",
		func(integrator string, scale, tol float64) {
			db, err := tables.Load(strings.NewReader(twoSpecies))
			Expect(err).NotTo(HaveOccurred())

			cfg := engine.DefaultRunConfig()
			cfg.InteractionModel = "none"
			cfg.Atmosphere = engine.AtmosphereConfig{Kind: atmosphere.KindIsothermal}
			cfg.Integrator = integrator
			cfg.StepScale = scale
			cfg.InitialDepth = 0
			cfg.Tolerance = dynamo.Tolerance{Rel: 1e-8, Abs: 1e-14}

			st, err := engine.Build(ctx, cfg, engine.UseDatabase(db))
			Expect(err).NotTo(HaveOccurred())

			a, err := st.Index.ByName("A")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Class).To(Equal(particles.Hadron))

			phi := make(dynamo.State, st.Index.Dim())
			for i := a.Lower(); i < a.Upper(); i++ {
				phi[i] = 1
			}
			st, err = st.WithInitialState(phi)
			Expect(err).NotTo(HaveOccurred())

			sol, err := st.Solve(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			mother, _ := sol.Flux("A", 0)
			daughter, err := sol.Flux("B", 0)
			Expect(err).NotTo(HaveOccurred())

			L := st.Atmosphere.PathLength()
			for i, ldec := range a.InverseDecayLength() {
				want := math.Exp(-ldec * L)
				Expect(mother[i]).To(BeNumerically("~", want, tol*want))
				Expect(mother[i] + daughter[i]).To(BeNumerically("~", 1, 1e-9))
			}
		},
		Entry("euler", engine.IntegratorEuler, 1e-4, 1e-2),
		Entry("rk45", "rk45", 1.0, 1e-3),
	)
})

const resonanceProjectile = `
energy_grid: {min: 1.0, max: 100.0, per_decade: 1}
species:
  - {pdg: 2212, name: p+, mass: 0.938272, ctau: 0}
  - {pdg: 113, name: rho0, mass: 0.775, ctau: 1.0e-13}
  - {pdg: 999, name: A, mass: 1.0, ctau: 3.0e6}
  - {pdg: 22, name: B, mass: 0, ctau: 0, lepton: true}
decays:
  - {mother: 999, daughter: 22, fraction: 1.0, spectrum: {kind: delta}}
interaction_models:
  plain:
    cross_sections:
      - {pdg: 2212, sigma_mb: 255, slope: 0.06}
      - {pdg: 113, sigma_mb: 200, slope: 0.06}
    yields:
      - {mother: 2212, daughter: 2212, fraction: 1.0, spectrum: {kind: delta}}
  rho:
    cross_sections:
      - {pdg: 2212, sigma_mb: 255, slope: 0.06}
      - {pdg: 113, sigma_mb: 200, slope: 0.06}
    yields:
      - {mother: 2212, daughter: 2212, fraction: 1.0, spectrum: {kind: delta}}
      - {mother: 113, daughter: 2212, fraction: 1.0, spectrum: {kind: delta}}
`

var _ = Describe("resonance with interaction yields", func() {
	ctx := context.Background()

	build := func(model string) *engine.RunState {
		db, err := tables.Load(strings.NewReader(resonanceProjectile))
		Expect(err).NotTo(HaveOccurred())
		cfg := engine.DefaultRunConfig()
		cfg.InteractionModel = model
		cfg.Atmosphere = engine.AtmosphereConfig{Kind: atmosphere.KindIsothermal}
		st, err := engine.Build(ctx, cfg, engine.UseDatabase(db))
		Expect(err).NotTo(HaveOccurred())
		return st
	}

	It("builds and contributes no interaction block", func() {
		st := build("rho")

		rho, err := st.Index.ByName("rho0")
		Expect(err).NotTo(HaveOccurred())
		Expect(rho.Class).To(Equal(particles.Resonance))
		Expect(rho.Projectile).To(BeFalse())

		plain := build("plain")
		Expect(st.Ops.Int.NNZ()).To(Equal(plain.Ops.Int.NNZ()))
		Expect(mat.Equal(st.Ops.Int, plain.Ops.Int)).To(BeTrue())
	})
})
