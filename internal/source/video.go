package source

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"moto/internal/profile"
)

// VideoConfig is the per-level configuration carried by the video profile,
// matching the Rust original's (width, skip, quant) triple (width in
// pixels, frame-skip stride, quantization step).
type VideoConfig struct {
	Width int
	Skip  int
	Quant int
}

func (c VideoConfig) String() string {
	return fmt.Sprintf("%dx%dx%d", c.Width, c.Skip, c.Quant)
}

func decodeVideoConfig(fields []string) (VideoConfig, error) {
	if len(fields) != 3 {
		return VideoConfig{}, errors.Errorf("expected 3 config columns (width,skip,quant), got %d", len(fields))
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return VideoConfig{}, errors.Wrap(err, "width")
	}
	s, err := strconv.Atoi(fields[1])
	if err != nil {
		return VideoConfig{}, errors.Wrap(err, "skip")
	}
	q, err := strconv.Atoi(fields[2])
	if err != nil {
		return VideoConfig{}, errors.Wrap(err, "quant")
	}
	return VideoConfig{Width: w, Skip: s, Quant: q}, nil
}

// VideoSource is the video-specific Experiment realization backed by a CSV
// trace keyed by (config, frame_num) -> bytes, matching video.rs's
// VideoSource. It satisfies both the Adapter and Experiment capability
// sets, and is the default source the client binary wires up. Actual H.264
// encoding remains out of scope (§1).
type VideoSource struct {
	simpleAdapter

	profile *profile.Profile[VideoConfig]
	trace   map[traceKey]int
	frame   uint64
	numMax  uint64
}

type traceKey struct {
	cfg   VideoConfig
	frame uint64
}

// LoadVideoProfile loads just the video profile CSV, for server-side uses
// that only need to enumerate configs by level (e.g. the accuracy join)
// without a source trace.
func LoadVideoProfile(profilePath string, maxSticky int) (*profile.Profile[VideoConfig], error) {
	p, err := profile.LoadCSV(profilePath, maxSticky, decodeVideoConfig)
	if err != nil {
		return nil, errors.Wrap(err, "loading video profile")
	}
	return p, nil
}

// NewVideoSource loads the profile and source-trace CSVs named in §6 and
// returns a ready-to-pace VideoSource starting at level 0.
func NewVideoSource(profilePath, sourcePath string, maxSticky, periodMS int) (*VideoSource, error) {
	p, err := profile.LoadCSV(profilePath, maxSticky, decodeVideoConfig)
	if err != nil {
		return nil, errors.Wrap(err, "loading video profile")
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening source trace %q", sourcePath)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing source trace %q", sourcePath)
	}

	trace := make(map[traceKey]int, len(rows))
	var numMax uint64
	for i, row := range rows {
		if len(row) != 5 {
			return nil, errors.Errorf("source trace %q row %d: expected 5 columns (w,s,q,frame_num,bytes)", sourcePath, i)
		}
		cfg, err := decodeVideoConfig(row[0:3])
		if err != nil {
			return nil, errors.Wrapf(err, "source trace %q row %d", sourcePath, i)
		}
		frameNum, err := strconv.ParseUint(row[3], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "source trace %q row %d: bad frame_num", sourcePath, i)
		}
		bytes, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, errors.Wrapf(err, "source trace %q row %d: bad byte size", sourcePath, i)
		}
		trace[traceKey{cfg: cfg, frame: frameNum}] = bytes
		if frameNum > numMax {
			numMax = frameNum
		}
	}

	return &VideoSource{
		simpleAdapter: simpleAdapter{simple: p.Simplify(), periodMS: periodMS},
		profile:       p,
		trace:         trace,
		frame:         1,
		numMax:        numMax,
	}, nil
}

// NextDatumSize implements Experiment: looks up the byte size of the
// current frame at the current configuration, then advances the frame
// cursor, wrapping back to 1 at the end of the trace.
func (v *VideoSource) NextDatumSize() (int, int) {
	cfg := v.profile.CurrentConfig()
	size, ok := v.trace[traceKey{cfg: cfg, frame: v.frame}]
	level := v.profile.CurrentLevel()
	if !ok {
		// Source trace doesn't cover this (config, frame) pair; skip this tick
		// rather than fabricate a size.
		v.advanceFrame()
		return 0, level
	}
	v.advanceFrame()
	return size, level
}

func (v *VideoSource) advanceFrame() {
	v.frame++
	if v.numMax > 0 && v.frame > v.numMax {
		v.frame = 1
	}
}

// Adapt overrides simpleAdapter.Adapt to go through the Profile; the Profile
// and simpleAdapter share one Simple, so CurrentConfig follows the new level.
func (v *VideoSource) Adapt(rateKbps float64) {
	v.profile.AdjustConfig(rateKbps)
}

// Advance overrides simpleAdapter.Advance to go through the Profile as well.
func (v *VideoSource) Advance() {
	v.profile.AdvanceConfig()
}
