package analytics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"moto/internal/source"
)

func writeStatCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFrameStats(t *testing.T) {
	path := writeStatCSV(t, "1,640,1,1,8,2,1\n2,960,0,1,9,0,0\n")
	stats, err := LoadFrameStats(path)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, uint64(1), stats[0].FrameNum)
	require.Equal(t, source.VideoConfig{Width: 640, Skip: 1, Quant: 1}, stats[0].Config)
	require.Equal(t, 8, stats[0].TruePositive)
}

func TestLoadFrameStatsRejectsBadRow(t *testing.T) {
	path := writeStatCSV(t, "1,640,1,1,8,2\n")
	_, err := LoadFrameStats(path)
	require.Error(t, err)
}

func TestAccuracyJoinsAndDrains(t *testing.T) {
	cfg0 := source.VideoConfig{Width: 640, Skip: 1, Quant: 1}
	stats := []FrameStat{
		{FrameNum: 1, Config: cfg0, TruePositive: 8, FalsePositive: 2, FalseNegative: 1},
		{FrameNum: 2, Config: cfg0, TruePositive: 9, FalsePositive: 0, FalseNegative: 0},
	}
	configs := map[int]source.VideoConfig{0: cfg0}
	a := New(stats, configs)

	_, ok := a.Accuracy()
	require.False(t, ok, "no logged frames yet")

	a.Add(1, 0)
	a.Add(2, 0)

	f1, ok := a.Accuracy()
	require.True(t, ok)
	// tp=17, fp=2, fn=1 -> precision=17/19, recall=17/18
	p := precision(17, 2)
	r := recall(17, 1)
	require.InDelta(t, f1Score(p, r), f1, 1e-9)

	// logs drained: a second call with nothing new reports not-ok.
	_, ok = a.Accuracy()
	require.False(t, ok)
}

func TestAccuracySkipsUnknownLevel(t *testing.T) {
	cfg0 := source.VideoConfig{Width: 640, Skip: 1, Quant: 1}
	stats := []FrameStat{{FrameNum: 1, Config: cfg0, TruePositive: 1, FalsePositive: 0, FalseNegative: 0}}
	a := New(stats, map[int]source.VideoConfig{})
	a.Add(1, 0)
	_, ok := a.Accuracy()
	require.False(t, ok)
}

func TestPrecisionRecallF1ZeroDenominators(t *testing.T) {
	require.Equal(t, 0.0, precision(0, 0))
	require.Equal(t, 0.0, recall(0, 0))
	require.Equal(t, 0.0, f1Score(0, 0))
}
