// Package profile implements the degradation profile and level-selection
// logic of §3/§4.8: an ordered list of (bandwidth demand, config, quality)
// records, binary-searched by bandwidth, with a sticky-decrease policy.
package profile

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Record is one level's operating point: the bandwidth it demands, its
// opaque configuration, and its analytic quality.
type Record[C any] struct {
	Bandwidth float64
	Config    C
	Quality   float64
}

// Simple is the index-only capability the Adaptation Machine and Dispatcher
// need: it never looks at the opaque config, only at bandwidth and level
// index (§9, "inheritance-like capabilities").
type Simple struct {
	levels      []float64
	current     int
	stickyCount int
	maxSticky   int
}

// NewSimple builds a Simple profile from an ascending bandwidth column.
// Panics if levels is empty or not strictly increasing, per the §3 invariant.
func NewSimple(levels []float64, maxSticky int) *Simple {
	if len(levels) == 0 {
		panic("profile: empty level list")
	}
	for i := 1; i < len(levels); i++ {
		if levels[i] <= levels[i-1] {
			panic("profile: bandwidth_demand must be strictly increasing")
		}
	}
	return &Simple{levels: levels, current: 0, stickyCount: maxSticky, maxSticky: maxSticky}
}

// Current returns the current level index.
func (s *Simple) Current() int { return s.current }

// IsMax reports whether the current level is the highest available.
func (s *Simple) IsMax() bool { return s.current == len(s.levels)-1 }

// Len returns the number of levels in the profile.
func (s *Simple) Len() int { return len(s.levels) }

// indexFor performs the binary search of §4.8: find the greatest index whose
// bandwidth_demand <= bw; on a miss, return the element immediately below
// the query, or 0 if the query is below the smallest entry.
func (s *Simple) indexFor(bw float64) int {
	n := len(s.levels)
	i := sort.Search(n, func(i int) bool { return s.levels[i] > bw })
	if i == 0 {
		return 0
	}
	return i - 1
}

// AdjustLevel implements adapt(rate_kbps): lowers the current level to the
// greatest index whose bandwidth_demand <= bw. A sticky policy delays
// downgrading when the computed level equals the current one: after
// maxSticky such no-ops the level is decreased anyway. Returns the new
// level and true if the level changed, or (_, false) if it did not.
func (s *Simple) AdjustLevel(bw float64) (int, bool) {
	newLevel := s.indexFor(bw)
	switch {
	case newLevel < s.current:
		s.current = newLevel
		s.stickyCount = s.maxSticky
		return s.current, true
	case newLevel == s.current:
		if s.stickyCount == 0 {
			s.stickyCount = s.maxSticky
			return s.DecreaseLevel()
		}
		s.stickyCount--
		return s.current, false
	default:
		// adapt() never increases the level.
		return s.current, false
	}
}

// AdvanceLevel implements advance_level(): increases the current level by
// one, if possible.
func (s *Simple) AdvanceLevel() (int, bool) {
	if s.current < len(s.levels)-1 {
		s.current++
		return s.current, true
	}
	return s.current, false
}

// DecreaseLevel decreases the current level by one, if possible.
func (s *Simple) DecreaseLevel() (int, bool) {
	if s.current > 0 {
		s.current--
		return s.current, true
	}
	return s.current, false
}

// NextRateDelta returns the bandwidth gap to the next level, or false if
// already at the maximum level.
func (s *Simple) NextRateDelta() (float64, bool) {
	if s.current >= len(s.levels)-1 {
		return 0, false
	}
	return s.levels[s.current+1] - s.levels[s.current], true
}

// Clone returns an independent copy, used where a capability-restricted view
// must be handed out without sharing mutable state.
func (s *Simple) Clone() *Simple {
	cp := *s
	cp.levels = append([]float64(nil), s.levels...)
	return &cp
}

// Profile is a Simple profile plus the per-level opaque configuration and
// quality columns, used by the Source Adapter side to resolve datum sizes
// (§9's "experiment" capability set).
type Profile[C any] struct {
	simple  *Simple
	records []Record[C]
}

// New builds a Profile from an in-memory record list, sorted ascending by
// bandwidth already (as loaded from CSV or constructed by tests).
func New[C any](records []Record[C], maxSticky int) *Profile[C] {
	levels := make([]float64, len(records))
	for i, r := range records {
		levels[i] = r.Bandwidth
	}
	return &Profile[C]{simple: NewSimple(levels, maxSticky), records: records}
}

// LoadCSV reads a no-header profile CSV: rows `bandwidth_kbps, w, s, q, quality`
// where the columns between the first (bandwidth) and the last (quality)
// are marshaled into C via decode.
func LoadCSV[C any](path string, maxSticky int, decode func(fields []string) (C, error)) (*Profile[C], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening profile %q", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing profile %q", path)
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("empty profile %q", path)
	}

	records := make([]Record[C], 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, errors.Errorf("profile %q row %d: too few columns", path, i)
		}
		bw, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "profile %q row %d: bad bandwidth", path, i)
		}
		quality, err := strconv.ParseFloat(row[len(row)-1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "profile %q row %d: bad quality", path, i)
		}
		cfg, err := decode(row[1 : len(row)-1])
		if err != nil {
			return nil, errors.Wrapf(err, "profile %q row %d: bad config", path, i)
		}
		records = append(records, Record[C]{Bandwidth: bw, Config: cfg, Quality: quality})
	}
	return New(records, maxSticky), nil
}

// InitConfig returns the level-0 (most degraded) configuration.
func (p *Profile[C]) InitConfig() C { return p.records[0].Config }

// CurrentConfig returns the configuration of the current level.
func (p *Profile[C]) CurrentConfig() C { return p.records[p.simple.Current()].Config }

// CurrentLevel returns the current level index.
func (p *Profile[C]) CurrentLevel() int { return p.simple.Current() }

// NthConfig returns the configuration at level n, used by accuracy joins.
func (p *Profile[C]) NthConfig(n int) C { return p.records[n].Config }

// Len returns the number of levels in the profile.
func (p *Profile[C]) Len() int { return len(p.records) }

// IsMax reports whether the current level is the highest available.
func (p *Profile[C]) IsMax() bool { return p.simple.IsMax() }

// AdjustConfig adapts to bw, returning the new record if the level changed.
func (p *Profile[C]) AdjustConfig(bw float64) (Record[C], bool) {
	level, changed := p.simple.AdjustLevel(bw)
	if !changed {
		return Record[C]{}, false
	}
	return p.records[level], true
}

// AdvanceConfig advances one level, returning the new record if it moved.
func (p *Profile[C]) AdvanceConfig() (Record[C], bool) {
	level, moved := p.simple.AdvanceLevel()
	if !moved {
		return Record[C]{}, false
	}
	return p.records[level], true
}

// NextRateDelta returns the bandwidth gap to the next level.
func (p *Profile[C]) NextRateDelta() (float64, bool) { return p.simple.NextRateDelta() }

// Simplify returns the index-only capability view. It is the Profile's own
// Simple, not a copy: level changes made through it are seen by the Profile
// and the other way round.
func (p *Profile[C]) Simplify() *Simple { return p.simple }
