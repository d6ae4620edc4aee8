package metrics

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestVaultCountersPerLabel(t *testing.T) {
	m := New()
	m.RecordVaultHit("PERSON")
	m.RecordVaultHit("PERSON")
	m.RecordVaultMiss("EMAIL_ADDRESS")
	m.RecordVaultHit("UNKNOWN_LABEL") // ignored

	snap := m.Snapshot()
	if snap.Replacements.VaultHits["PERSON"] != 2 {
		t.Errorf("PERSON hits = %d, want 2", snap.Replacements.VaultHits["PERSON"])
	}
	if snap.Replacements.VaultMisses["EMAIL_ADDRESS"] != 1 {
		t.Errorf("EMAIL_ADDRESS misses = %d, want 1", snap.Replacements.VaultMisses["EMAIL_ADDRESS"])
	}
	if _, ok := snap.Replacements.VaultHits["UNKNOWN_LABEL"]; ok {
		t.Error("unknown label must not appear in snapshot")
	}
}

func TestSnapshotOmitsZeroLabels(t *testing.T) {
	m := New()
	m.RecordVaultHit("US_SSN")
	snap := m.Snapshot()
	if len(snap.Replacements.VaultHits) != 1 {
		t.Errorf("expected only labels with non-zero counts, got %v", snap.Replacements.VaultHits)
	}
}

func TestLatencyStats(t *testing.T) {
	m := New()
	m.RecordDetectLatency(10 * time.Millisecond)
	m.RecordDetectLatency(30 * time.Millisecond)
	m.RecordDetectLatency(20 * time.Millisecond)

	snap := m.Snapshot()
	lat := snap.Latency.DetectionMs
	if lat.Count != 3 {
		t.Fatalf("count = %d, want 3", lat.Count)
	}
	if lat.MinMs != 10 || lat.MaxMs != 30 {
		t.Errorf("min/max = %v/%v, want 10/30", lat.MinMs, lat.MaxMs)
	}
	if lat.MeanMs != 20 {
		t.Errorf("mean = %v, want 20", lat.MeanMs)
	}
}

func TestEmptyLatencySnapshotIsZero(t *testing.T) {
	m := New()
	snap := m.Snapshot()
	if snap.Latency.ExtractionMs != (LatencySnapshot{}) {
		t.Errorf("expected zero latency snapshot, got %+v", snap.Latency.ExtractionMs)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordVaultHit("PERSON")
	m.RecordVaultMiss("PERSON")
	m.RecordDetectLatency(time.Millisecond)
	m.RecordExtractLatency(time.Millisecond)
	// no panic is the assertion
}

func TestConcurrentCountersDoNotRace(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.DocumentsProcessed.Add(1)
				m.ReplacementsTotal.Add(1)
				m.RecordVaultMiss("DATE_TIME")
				m.RecordDetectLatency(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.Documents.Processed != 800 {
		t.Errorf("processed = %d, want 800", snap.Documents.Processed)
	}
	if snap.Replacements.VaultMisses["DATE_TIME"] != 800 {
		t.Errorf("DATE_TIME misses = %d, want 800", snap.Replacements.VaultMisses["DATE_TIME"])
	}
}

func TestSnapshotIsJSONEncodable(t *testing.T) {
	m := New()
	m.DocumentsProcessed.Add(2)
	m.RecordVaultMiss("URL")

	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if decoded.Documents.Processed != 2 {
		t.Errorf("processed = %d, want 2", decoded.Documents.Processed)
	}
}
