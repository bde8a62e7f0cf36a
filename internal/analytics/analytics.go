// Package analytics implements the server-side accuracy evaluation named in
// §1 ("evaluates analytic quality") and given a concrete shape by
// analytics.rs/acc.rs: join the (frame_num, level) log recorded as Live
// frames arrive against a per-frame stat CSV, and report precision/recall/F1.
package analytics

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"moto/internal/source"
)

// FrameStat is one row of the stat_path CSV: the outcome of running the
// detector at a given (frame_num, config).
type FrameStat struct {
	FrameNum      uint64
	Config        source.VideoConfig
	TruePositive  int
	FalsePositive int
	FalseNegative int
}

// LoadFrameStats reads stat_path: rows `frame_num, width, skip, quant, tp, fp, fn`.
func LoadFrameStats(path string) ([]FrameStat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening stat file %q", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing stat file %q", path)
	}

	out := make([]FrameStat, 0, len(rows))
	for i, row := range rows {
		if len(row) != 7 {
			return nil, errors.Errorf("stat file %q row %d: expected 7 columns", path, i)
		}
		vals := make([]int, 7)
		for j, field := range row {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, errors.Wrapf(err, "stat file %q row %d col %d", path, i, j)
			}
			vals[j] = v
		}
		out = append(out, FrameStat{
			FrameNum:      uint64(vals[0]),
			Config:        source.VideoConfig{Width: vals[1], Skip: vals[2], Quant: vals[3]},
			TruePositive:  vals[4],
			FalsePositive: vals[5],
			FalseNegative: vals[6],
		})
	}
	return out, nil
}

// Analytics logs (frame_num, level) pairs as Live frames arrive and, on
// demand, joins them against the loaded frame stats to report an
// end-to-end accuracy number (precision/recall/F1).
type Analytics struct {
	mu         sync.Mutex
	frameStats []FrameStat
	configs    map[int]source.VideoConfig
	logs       []logEntry
}

type logEntry struct {
	frameNum uint64
	level    int
}

// New builds an Analytics evaluator. configs maps level index to the
// VideoConfig run at that level, so the join can find the matching stat row.
func New(frameStats []FrameStat, configs map[int]source.VideoConfig) *Analytics {
	return &Analytics{frameStats: frameStats, configs: configs}
}

// Add records that frameNum was sent at level.
func (a *Analytics) Add(frameNum uint64, level int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, logEntry{frameNum: frameNum, level: level})
}

// Accuracy joins the accumulated log against the stat table and returns
// the F1 score, clearing the log afterwards (matching analytics.rs's
// Inner::accuracy, which also drains logs on read).
func (a *Analytics) Accuracy() (f1 float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.logs) == 0 {
		return 0, false
	}

	var tp, fp, fn int
	matched := 0
	for _, entry := range a.logs {
		cfg, known := a.configs[entry.level]
		if !known {
			continue
		}
		for _, fs := range a.frameStats {
			if fs.FrameNum == entry.frameNum && fs.Config == cfg {
				tp += fs.TruePositive
				fp += fs.FalsePositive
				fn += fs.FalseNegative
				matched++
				break
			}
		}
	}
	a.logs = a.logs[:0]
	if matched == 0 {
		return 0, false
	}

	p := precision(tp, fp)
	r := recall(tp, fn)
	return f1Score(p, r), true
}

func precision(tp, fp int) float64 {
	if tp+fp == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fp)
}

func recall(tp, fn int) float64 {
	if tp+fn == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fn)
}

func f1Score(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
