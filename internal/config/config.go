// Package config loads the runtime setting from TOML, the way §6 of the
// spec defines the configuration surface, and folds in the tuning knobs the
// spec insists must not be hard-coded (the conservative-rate factor,
// congestion latency threshold, startup tolerance, and probe step/extra
// multiplier).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Logging holds the process' log setup, read from the [log] table.
type Logging struct {
	Level      string `toml:"level"`
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Tuning holds the adaptation knobs the spec requires to be configurable
// rather than baked in as constants (§9 Open Questions).
type Tuning struct {
	// ConservativeRateFactor is K in AdjustConfig(K*rate_kbps); spec allows [0.6, 0.9].
	ConservativeRateFactor float64 `toml:"conservative_rate_factor"`
	// CongestLatencyMS is the Monitor's QueueCongest threshold.
	CongestLatencyMS float64 `toml:"congest_latency_ms"`
	// StartupCongestEnough is the count of congestion signals in Startup at
	// which the machine transits to Degrade (the earlier ones are tolerated).
	StartupCongestEnough int `toml:"startup_congest_enough"`
	// SteadyEnough is how many consecutive QueueEmpty signals Steady requires before probing.
	SteadyEnough int `toml:"steady_enough"`
	// NumProbeSteps is the number of pace increments a probe ramps over.
	NumProbeSteps int `toml:"num_probe_steps"`
	// ProbeExtra is the multiplier applied to the bandwidth delta needed for the next level.
	ProbeExtra float64 `toml:"probe_extra"`
	// MaxSticky is how many sticky adjust_level no-ops are tolerated before forcing a decrease.
	MaxSticky int `toml:"max_sticky"`
	// QueueEmptyRequired is how many empty monitor ticks in a row emit QueueEmpty.
	QueueEmptyRequired int `toml:"queue_empty_required"`
	// MonitorIntervalMS is the Monitor's tick period.
	MonitorIntervalMS int `toml:"monitor_interval_ms"`
	// AlphaRate is the conservatism factor applied to the rate carried by QueueCongest.
	AlphaRate float64 `toml:"alpha_rate"`
	// SmoothAlpha is the exponential-smoothing factor for the Monitor's rate estimate.
	SmoothAlpha float64 `toml:"smooth_alpha"`
}

// DefaultTuning returns the tuned-build constants named throughout §4 of the spec.
func DefaultTuning() Tuning {
	return Tuning{
		ConservativeRateFactor: 0.9,
		CongestLatencyMS:       1.0,
		StartupCongestEnough:   3,
		SteadyEnough:           3,
		NumProbeSteps:          5,
		ProbeExtra:             1.05,
		MaxSticky:              3,
		QueueEmptyRequired:     20,
		MonitorIntervalMS:      100,
		AlphaRate:              0.9,
		SmoothAlpha:            0.5,
	}
}

// Setting is the runtime configuration loaded from TOML, matching the
// surface named in §6: server/port to dial or bind, profile/source CSV
// paths, and the server-only stat path for accuracy evaluation.
type Setting struct {
	Server      string  `toml:"server"`
	Port        uint16  `toml:"port"`
	ProfilePath string  `toml:"profile_path"`
	SourcePath  string  `toml:"source_path"`
	StatPath    string  `toml:"stat_path"`
	Log         Logging `toml:"log"`
	Tuning      Tuning  `toml:"tuning"`
}

// GlobalCfg is the process-wide effective configuration, populated by Load.
var GlobalCfg *Setting

// EnvOverride is the environment variable that can point at a config file
// when none is given on the command line, mirroring the teacher's MOTO_CONFIG.
const EnvOverride = "MOTO_STREAM_CONFIG"

// Load reads and validates the setting at path, filling tuning defaults for
// any knob left at its zero value, and assigns it to GlobalCfg.
func Load(path string) (*Setting, error) {
	if path == "" {
		path = os.Getenv(EnvOverride)
	}
	if path == "" {
		return nil, errors.New("no config path given and " + EnvOverride + " is unset")
	}
	var s Setting
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, errors.Wrapf(err, "failed to load config %q", path)
	}
	fillTuningDefaults(&s.Tuning)
	if err := s.verify(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", path)
	}
	GlobalCfg = &s
	return &s, nil
}

func fillTuningDefaults(t *Tuning) {
	def := DefaultTuning()
	if t.ConservativeRateFactor == 0 {
		t.ConservativeRateFactor = def.ConservativeRateFactor
	}
	if t.CongestLatencyMS == 0 {
		t.CongestLatencyMS = def.CongestLatencyMS
	}
	if t.StartupCongestEnough == 0 {
		t.StartupCongestEnough = def.StartupCongestEnough
	}
	if t.SteadyEnough == 0 {
		t.SteadyEnough = def.SteadyEnough
	}
	if t.NumProbeSteps == 0 {
		t.NumProbeSteps = def.NumProbeSteps
	}
	if t.ProbeExtra == 0 {
		t.ProbeExtra = def.ProbeExtra
	}
	if t.MaxSticky == 0 {
		t.MaxSticky = def.MaxSticky
	}
	if t.QueueEmptyRequired == 0 {
		t.QueueEmptyRequired = def.QueueEmptyRequired
	}
	if t.MonitorIntervalMS == 0 {
		t.MonitorIntervalMS = def.MonitorIntervalMS
	}
	if t.AlphaRate == 0 {
		t.AlphaRate = def.AlphaRate
	}
	if t.SmoothAlpha == 0 {
		t.SmoothAlpha = def.SmoothAlpha
	}
}

// verify validates required fields, the way the teacher's Rule.verify() does.
func (s *Setting) verify() error {
	if s.Server == "" {
		return errors.New("empty server address")
	}
	if s.Port == 0 {
		return errors.New("invalid port")
	}
	if s.ProfilePath == "" {
		return errors.New("empty profile_path")
	}
	if s.SourcePath == "" {
		return errors.New("empty source_path")
	}
	if s.Tuning.ConservativeRateFactor < 0.6 || s.Tuning.ConservativeRateFactor > 0.9 {
		return errors.New("conservative_rate_factor must be in [0.6, 0.9]")
	}
	return nil
}
