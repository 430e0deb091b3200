package particles

// DefaultPromptReference is the species whose critical energy defines
// "prompt": every hadron at or above it feeds the pr_ buckets (D±).
const DefaultPromptReference = 411

// RoutingConfig selects which mother/daughter pairs are redirected.
type RoutingConfig struct {
	// Leptons are the daughter ids (absolute) subject to aliasing.
	Leptons []int
	// PromptReference is the id whose critical energy is the prompt threshold.
	PromptReference int
	// Observers are mother ids whose lepton daughters are also scored in obs_.
	Observers []int
}

func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		Leptons:         DefaultAliasLeptons,
		PromptReference: DefaultPromptReference,
	}
}

type pair struct{ mother, daughter int }

// Routing holds the alias and observer tables. It is read-only once built.
type Routing struct {
	idx      *Index
	alias    map[pair]int
	observer map[pair]int
}

// NewRouting builds the alias table from the index (pions, kaons and prompt
// mothers) and the observer table from cfg.Observers.
func NewRouting(idx *Index, cfg RoutingConfig) (*Routing, error) {
	r := &Routing{
		idx:      idx,
		alias:    make(map[pair]int),
		observer: make(map[pair]int),
	}

	var prompt []int
	if ref, err := idx.ByID(cfg.PromptReference); err == nil {
		for _, s := range idx.species {
			if s.Class == Lepton || s.Class == Alias || s.ID < 0 {
				continue
			}
			if s.ECrit >= ref.ECrit {
				prompt = append(prompt, s.ID)
			}
		}
	}

	for _, l := range cfg.Leptons {
		l = abs(l)
		r.alias[pair{211, l}] = PionOffset + l
		r.alias[pair{321, l}] = KaonOffset + l
		for _, p := range prompt {
			r.alias[pair{p, l}] = PromptOffset + l
		}
	}

	for _, o := range cfg.Observers {
		if !idx.Has(o) {
			return nil, NotFound(o)
		}
		for _, l := range cfg.Leptons {
			l = abs(l)
			r.observer[pair{abs(o), l}] = ObserverOffset + l
		}
	}

	return r, nil
}

// Alias returns the bucket a mother→daughter decay is redirected into.
func (r *Routing) Alias(mother, daughter int) (*Species, bool) {
	return r.lookup(r.alias, mother, daughter)
}

// Observer returns the obs_ bucket a mother→daughter decay is also scored in.
func (r *Routing) Observer(mother, daughter int) (*Species, bool) {
	return r.lookup(r.observer, mother, daughter)
}

func (r *Routing) lookup(table map[pair]int, mother, daughter int) (*Species, bool) {
	if r == nil {
		return nil, false
	}
	target, ok := table[pair{abs(mother), abs(daughter)}]
	if !ok {
		return nil, false
	}
	s, ok := r.idx.byID[sign(daughter)*target]
	if !ok || !s.Tracked() {
		return nil, false
	}
	return s, true
}

// AliasCount and ObserverCount report table sizes for diagnostics.
func (r *Routing) AliasCount() int    { return len(r.alias) }
func (r *Routing) ObserverCount() int { return len(r.observer) }
