package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/msgroups/sessionvault/internal/schema"
	"github.com/msgroups/sessionvault/internal/session"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	return s
}

func testBatch(ids ...string) []session.RawRecord {
	batch := make([]session.RawRecord, len(ids))
	for i, id := range ids {
		rec := session.NewRawRecord()
		rec[schema.FieldSessionID] = id
		rec[schema.FieldCountry] = "FR"
		batch[i] = rec
	}
	return batch
}

func TestSaveAndLoadLatest(t *testing.T) {
	s := newTestStore(t)
	fetchedAt := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	if _, err := s.SaveSnapshot(testBatch("a", "b"), fetchedAt.Add(-time.Hour)); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	id, err := s.SaveSnapshot(testBatch("c", "d", "e"), fetchedAt)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	records, info, err := s.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if info == nil {
		t.Fatal("LoadLatest info = nil")
	}
	if info.ID != id || info.RowCount != 3 {
		t.Errorf("info = %+v, want id %d with 3 rows", info, id)
	}
	if !info.FetchedAt.Equal(fetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", info.FetchedAt, fetchedAt)
	}
	if diff := cmp.Diff(testBatch("c", "d", "e"), records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLatestEmptyArchive(t *testing.T) {
	s := newTestStore(t)
	records, info, err := s.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if records != nil || info != nil {
		t.Errorf("LoadLatest on empty archive = %v, %v, want nils", records, info)
	}
}

func TestLoadSnapshotByID(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	first, err := s.SaveSnapshot(testBatch("old"), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if _, err := s.SaveSnapshot(testBatch("new"), now); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	records, err := s.LoadSnapshot(first)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(records) != 1 || records[0][schema.FieldSessionID] != "old" {
		t.Errorf("records = %v, want the first snapshot", records)
	}
}

func TestListSnapshots(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if _, err := s.SaveSnapshot(testBatch("x"), now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}

	infos, err := s.ListSnapshots(0)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(infos))
	}
	for i := 1; i < len(infos); i++ {
		if infos[i].ID > infos[i-1].ID {
			t.Errorf("snapshots not newest first: %+v", infos)
		}
	}

	limited, err := s.ListSnapshots(2)
	if err != nil {
		t.Fatalf("ListSnapshots limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d snapshots with limit 2", len(limited))
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.SaveSnapshot(testBatch("x"), now)
		if err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
		last = id
	}

	removed, err := s.Prune(2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	infos, err := s.ListSnapshots(0)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(infos) != 2 || infos[0].ID != last {
		t.Errorf("kept %+v, want the 2 newest", infos)
	}

	// rows of pruned snapshots go with them
	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2 after prune", stats.RowCount)
	}

	if removed, err := s.Prune(0); err != nil || removed != 0 {
		t.Errorf("Prune(0) = %d, %v, want no-op", removed, err)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveSnapshot(testBatch("a", "b"), time.Now().UTC()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.SnapshotCount != 1 || stats.RowCount != 2 {
		t.Errorf("stats = %+v, want 1 snapshot with 2 rows", stats)
	}
	if stats.DatabaseSize <= 0 {
		t.Errorf("DatabaseSize = %d, want > 0", stats.DatabaseSize)
	}
}
