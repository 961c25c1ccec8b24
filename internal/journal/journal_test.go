package journal

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/agevault/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "agevault-journal-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM transcodes`).Scan(&count); err != nil {
		t.Fatalf("transcodes table missing: %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	db := testDB(t)
	base := time.Now().Add(-time.Minute)
	_ = db.Record(models.Outcome{TickID: "t1", Op: models.OpEncrypt, Source: "notes.txt", Output: "notes.txt.age", Status: models.StatusOK, Size: 5, At: base})
	_ = db.Record(models.Outcome{TickID: "t2", Op: models.OpDecrypt, Source: "bad.age", Status: models.StatusFailed, Err: errors.New("no identity"), At: base.Add(time.Second)})

	entries, err := db.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Source != "bad.age" || entries[0].Error != "no identity" {
		t.Errorf("newest entry = %+v", entries[0])
	}
	if entries[1].Op != "encrypt" || entries[1].Size != 5 || entries[1].ID == "" {
		t.Errorf("oldest entry = %+v", entries[1])
	}
}

func TestRecentLimit(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 5; i++ {
		_ = db.Record(models.Outcome{Op: models.OpEncrypt, Source: "f", Status: models.StatusOK})
	}
	entries, err := db.Recent(3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}

func TestCounts(t *testing.T) {
	db := testDB(t)
	_ = db.Record(models.Outcome{Op: models.OpEncrypt, Source: "a", Status: models.StatusOK})
	_ = db.Record(models.Outcome{Op: models.OpEncrypt, Source: "b", Status: models.StatusOK})
	_ = db.Record(models.Outcome{Op: models.OpDecrypt, Source: "c", Status: models.StatusFailed})

	counts, err := db.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[models.StatusOK] != 2 || counts[models.StatusFailed] != 1 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestRecentEmpty(t *testing.T) {
	db := testDB(t)
	entries, err := db.Recent(0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}
