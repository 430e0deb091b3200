package atmosphere

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/interp"

	"github.com/san-kum/cascade/internal/dynamo"
)

const (
	// earthRadius in cm.
	earthRadius = 6391.0e5
	// tablePoints is the number of tabulated path-length nodes.
	tablePoints = 2000
	segmentRule = 8
)

// Kinds of atmosphere models.
const (
	KindCorsika    = "CORSIKA"
	KindIsothermal = "isothermal"
)

// Model is a profile seen along a line of sight at a fixed zenith angle,
// parametrized by slant depth X from the top of the atmosphere.
type Model struct {
	profile Profile
	theta   float64
	length  float64
	xSurf   float64
	pathOfX interp.PiecewiseLinear
}

// New selects a profile by kind, location and season and projects it
// onto the zenith angle.
func New(kind, location, season string, zenithDeg float64) (*Model, error) {
	var p Profile
	switch kind {
	case KindCorsika:
		c, err := NewCorsika(location, season)
		if err != nil {
			return nil, err
		}
		p = c
	case KindIsothermal:
		p = NewIsothermal()
	default:
		return nil, dynamo.Configf("unknown atmosphere model: %s", kind)
	}
	return NewModel(p, zenithDeg)
}

// Kinds lists the supported model kinds.
func Kinds() []string { return []string{KindCorsika, KindIsothermal} }

// NewModel tabulates X(s) along the line of sight, s being the path length
// from the top of the atmosphere towards an observer at sea level.
func NewModel(p Profile, zenithDeg float64) (*Model, error) {
	if math.IsNaN(zenithDeg) || zenithDeg < 0 || zenithDeg > 90 {
		return nil, dynamo.Configf("zenith angle %g outside [0, 90]", zenithDeg)
	}

	m := &Model{profile: p, theta: zenithDeg}
	cosT := math.Cos(zenithDeg * math.Pi / 180)
	R := earthRadius
	rt := R + p.Top()
	m.length = -R*cosT + math.Sqrt(R*R*cosT*cosT+rt*rt-R*R)

	density := func(s float64) float64 { return p.Density(m.height(s)) }

	s := make([]float64, tablePoints)
	X := make([]float64, tablePoints)
	for i := 1; i < tablePoints; i++ {
		s[i] = m.length * float64(i) / float64(tablePoints-1)
		X[i] = X[i-1] + quad.Fixed(density, s[i-1], s[i], segmentRule, nil, 0)
		if X[i] <= X[i-1] {
			return nil, fmt.Errorf("%w: %s has no column depth at s=%g cm",
				dynamo.ErrNumerical, p.Name(), s[i])
		}
	}
	m.xSurf = X[tablePoints-1]

	if err := m.pathOfX.Fit(X, s); err != nil {
		return nil, fmt.Errorf("%w: tabulate slant depth: %v", dynamo.ErrNumerical, err)
	}
	return m, nil
}

// height above sea level at path length s from the top, kept strictly
// below the top of the profile.
func (m *Model) height(s float64) float64 {
	l := m.length - s
	cosT := math.Cos(m.theta * math.Pi / 180)
	R := earthRadius
	h := math.Sqrt(R*R+l*l+2*R*l*cosT) - R
	return math.Max(0, math.Min(h, m.profile.Top()*(1-1e-9)))
}

// WithZenith returns the same profile at another angle, or m itself if the
// angle is unchanged.
func (m *Model) WithZenith(zenithDeg float64) (*Model, error) {
	if zenithDeg == m.theta {
		return m, nil
	}
	return NewModel(m.profile, zenithDeg)
}

// InverseDensity returns 1/ρ in cm³/g at slant depth X. Depths beyond the
// surface are clamped to it.
func (m *Model) InverseDensity(X float64) float64 {
	X = math.Max(0, math.Min(X, m.xSurf))
	return 1 / m.profile.Density(m.height(m.pathOfX.Predict(X)))
}

// HeightAt returns the height in cm at slant depth X.
func (m *Model) HeightAt(X float64) float64 {
	X = math.Max(0, math.Min(X, m.xSurf))
	return m.height(m.pathOfX.Predict(X))
}

// SurfaceDepth is the slant depth of sea level in g/cm².
func (m *Model) SurfaceDepth() float64 { return m.xSurf }

func (m *Model) ZenithDeg() float64 { return m.theta }

func (m *Model) Name() string { return m.profile.Name() }

// PathLength is the geometric length of the line of sight in cm.
func (m *Model) PathLength() float64 { return m.length }
