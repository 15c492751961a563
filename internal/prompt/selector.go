package prompt

import (
	"fmt"
	"math/rand"
	"time"

	"flipbot/internal/history"
)

// Rotation strategies.
const (
	StrategyDaily  = "daily"
	StrategyRandom = "random"
)

// Selection is a chosen prompt plus the condensed identifier that will be
// recorded in the history ledger if the run completes.
type Selection struct {
	Entry
	Condensed string
}

// Selector picks analysis prompts from the catalog, preferring ones the
// history ledger has not seen.
type Selector struct {
	catalog Catalog
	hist    *history.Store
	rng     *rand.Rand
}

// NewSelector builds a Selector over catalog and the history ledger.
func NewSelector(catalog Catalog, hist *history.Store) *Selector {
	return &Selector{
		catalog: catalog,
		hist:    hist,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand replaces the random source. Tests use this for determinism.
func (s *Selector) WithRand(rng *rand.Rand) *Selector {
	s.rng = rng
	return s
}

// Pick selects a prompt by strategy name.
func (s *Selector) Pick(strategy string, now time.Time) (Selection, error) {
	switch strategy {
	case StrategyDaily, "":
		return s.Daily(now), nil
	case StrategyRandom:
		return s.Random(), nil
	default:
		return Selection{}, fmt.Errorf("unknown rotation strategy %q", strategy)
	}
}

// Daily rotates deterministically through the flattened catalog by day of
// year. The same day always yields the same prompt.
func (s *Selector) Daily(now time.Time) Selection {
	all := s.catalog.All()
	entry := all[now.YearDay()%len(all)]
	return s.selection(entry)
}

// Random picks uniformly among prompts the ledger has not seen; once every
// prompt has been used it falls back to the whole catalog.
func (s *Selector) Random() Selection {
	all := s.catalog.All()

	var unused []Entry
	for _, e := range all {
		if !s.hist.Contains(Condense(e.Category, e.Text)) {
			unused = append(unused, e)
		}
	}
	pool := unused
	if len(pool) == 0 {
		pool = all
	}
	return s.selection(pool[s.rng.Intn(len(pool))])
}

func (s *Selector) selection(e Entry) Selection {
	return Selection{Entry: e, Condensed: Condense(e.Category, e.Text)}
}

// CategoryStat counts catalog usage for one category.
type CategoryStat struct {
	Name  string
	Total int
	Used  int
}

// Stats summarizes catalog usage against the history ledger.
type Stats struct {
	Total      int
	Used       int
	Available  int
	Categories []CategoryStat
}

// Stats reports how much of the catalog the ledger has covered.
func (s *Selector) Stats() Stats {
	var st Stats
	for _, cat := range s.catalog.Categories {
		cs := CategoryStat{Name: cat.Name, Total: len(cat.Prompts)}
		for _, p := range cat.Prompts {
			if s.hist.Contains(Condense(cat.Name, p)) {
				cs.Used++
			}
		}
		st.Total += cs.Total
		st.Used += cs.Used
		st.Categories = append(st.Categories, cs)
	}
	st.Available = st.Total - st.Used
	return st
}
