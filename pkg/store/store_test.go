package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"perpscan/pkg/market"
)

func testDocument(bars int) *market.Document {
	klines := make(market.Series, bars)
	for i := range klines {
		klines[i] = market.Kline{
			Symbol:    "BTCUSDT",
			OpenTime:  int64(i+1) * 60_000,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    10,
			CloseTime: int64(i+2)*60_000 - 1,
		}
	}
	return &market.Document{
		Exchange:    "binance",
		Symbol:      "BTCUSDT",
		Interval:    "1h",
		GeneratedAt: "2026-01-02T15:04:05Z",
		Klines:      klines,
	}
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	calls := 0
	return func() time.Time {
		t := start.Add(time.Duration(calls) * time.Second)
		calls++
		return t
	}
}

func TestSaveDocumentPathAndContent(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, 1)
	st.nowFn = steppingClock(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC))

	path, err := st.SaveDocument(testDocument(3))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "binance", "BTCUSDT", "1h", "20260102_150405_3.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Pretty-printed, two-space indent.
	require.Contains(t, string(data), "\n  \"exchange\": \"binance\"")

	var got market.Document
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "BTCUSDT", got.Symbol)
	require.Len(t, got.Klines, 3)
}

func TestSaveDocumentNormalizesPathCase(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, 1)

	doc := testDocument(1)
	doc.Exchange = "Binance"
	doc.Symbol = "btcusdt"

	path, err := st.SaveDocument(doc)
	require.NoError(t, err)
	require.Contains(t, path, filepath.Join(dir, "binance", "BTCUSDT", "1h"))
}

func TestSaveDocumentRejectsBadInput(t *testing.T) {
	st := New(t.TempDir(), 1)

	_, err := st.SaveDocument(nil)
	require.Error(t, err)

	doc := testDocument(1)
	doc.Interval = ""
	_, err = st.SaveDocument(doc)
	require.Error(t, err)
}

func TestSaveDocumentKeepsOnlyNewest(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, 1)
	st.nowFn = steppingClock(time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC))

	var last string
	for i := 0; i < 3; i++ {
		path, err := st.SaveDocument(testDocument(5))
		require.NoError(t, err)
		last = path
	}

	entries, err := filepath.Glob(filepath.Join(dir, "binance", "BTCUSDT", "1h", "*.json"))
	require.NoError(t, err)
	require.Equal(t, []string{last}, entries)
}

func TestSaveDocumentKeepsNewestN(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, 2)
	st.nowFn = steppingClock(time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC))

	var paths []string
	for i := 0; i < 4; i++ {
		path, err := st.SaveDocument(testDocument(5))
		require.NoError(t, err)
		paths = append(paths, path)
	}

	entries, err := filepath.Glob(filepath.Join(dir, "binance", "BTCUSDT", "1h", "*.json"))
	require.NoError(t, err)
	require.Equal(t, []string{paths[2], paths[3]}, entries)
}

func TestPruneLeavesOtherFilesAlone(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, 1)
	st.nowFn = steppingClock(time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC))

	folder := filepath.Join(dir, "binance", "BTCUSDT", "1h")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	note := filepath.Join(folder, "README.txt")
	require.NoError(t, os.WriteFile(note, []byte("not json"), 0o644))

	_, err := st.SaveDocument(testDocument(5))
	require.NoError(t, err)
	_, err = st.SaveDocument(testDocument(5))
	require.NoError(t, err)

	_, err = os.Stat(note)
	require.NoError(t, err)
}

func TestSaveSnapshot(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, 1)
	st.nowFn = steppingClock(time.Date(2026, 1, 2, 16, 0, 0, 0, time.UTC))

	snap := &market.Snapshot{
		Exchange:     "okx",
		GeneratedAt:  "2026-01-02T16:00:00Z",
		TotalSymbols: 2,
	}
	path, err := st.SaveSnapshot(snap)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "okx", "_snapshot", "20260102_160000_snapshot.json"), path)

	// Snapshots rotate just like documents.
	second, err := st.SaveSnapshot(snap)
	require.NoError(t, err)
	entries, err := filepath.Glob(filepath.Join(dir, "okx", "_snapshot", "*.json"))
	require.NoError(t, err)
	require.Equal(t, []string{second}, entries)
}

func TestSaveSnapshotRejectsBadInput(t *testing.T) {
	st := New(t.TempDir(), 1)

	_, err := st.SaveSnapshot(nil)
	require.Error(t, err)

	_, err = st.SaveSnapshot(&market.Snapshot{})
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	st := New("", 0)
	require.Equal(t, "data", st.dataDir)
	require.Equal(t, 1, st.keep)
}

func TestWithKeep(t *testing.T) {
	st := New(t.TempDir(), 1)

	wider := st.WithKeep(3)
	require.Equal(t, st.dataDir, wider.dataDir)
	require.Equal(t, 3, wider.keep)
	require.Equal(t, 1, st.keep)

	require.Same(t, st, st.WithKeep(0))
	require.Same(t, st, st.WithKeep(-2))
}
