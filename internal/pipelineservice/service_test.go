package pipelineservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/agevault/internal/apperr"
	"github.com/starford/agevault/internal/models"
	"github.com/starford/agevault/internal/scheduler"
	"github.com/starford/agevault/internal/testutil"
)

type keyFlag bool

func (k keyFlag) Exists() bool { return bool(k) }

func TestStatus_CountsStages(t *testing.T) {
	layout, store := testutil.TestLayout(t)
	testutil.WriteFile(t, layout.Encrypt, "a.txt", []byte("abc"))
	testutil.WriteFile(t, layout.Encrypt, "b.txt", []byte("de"))
	testutil.WriteFile(t, layout.Vault, "c.txt.age", []byte("x"))

	last := time.Now()
	svc := NewService(store, layout, keyFlag(true), WithStats(func() scheduler.Stats {
		return scheduler.Stats{Ticks: 7, LastTick: last}
	}))

	st, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.KeyPresent || st.Ticks != 7 || st.LastTick == nil {
		t.Errorf("status = %+v", st)
	}
	got := map[models.Stage]StageStatus{}
	for _, ss := range st.Stages {
		got[ss.Stage] = ss
	}
	if got[models.StageEncryptQueue].Files != 2 || got[models.StageEncryptQueue].Bytes != 5 {
		t.Errorf("encrypt stage = %+v", got[models.StageEncryptQueue])
	}
	if got[models.StageVault].Files != 1 || got[models.StageLocal].Files != 0 {
		t.Errorf("stages = %+v", got)
	}
}

func TestStatus_WithLedger(t *testing.T) {
	layout, store := testutil.TestLayout(t)
	db := testutil.TestJournal(t)
	_ = db.Record(models.Outcome{Op: models.OpEncrypt, Source: "a", Status: models.StatusOK})

	svc := NewService(store, layout, keyFlag(false), WithLedger(db))
	st, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.KeyPresent {
		t.Error("key should be reported absent")
	}
	if st.Outcomes[models.StatusOK] != 1 {
		t.Errorf("outcomes = %+v", st.Outcomes)
	}
}

func TestListStage(t *testing.T) {
	layout, store := testutil.TestLayout(t)
	testutil.WriteFile(t, layout.Decrypt, "x.age", []byte("x"))
	svc := NewService(store, layout, keyFlag(true))

	files, err := svc.ListStage(context.Background(), models.StageDecryptQueue)
	if err != nil {
		t.Fatalf("ListStage: %v", err)
	}
	if len(files) != 1 || files[0].Name != "x.age" {
		t.Errorf("files = %+v", files)
	}

	empty, err := svc.ListStage(context.Background(), models.StageLocal)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %v, %v", empty, err)
	}

	if _, err := svc.ListStage(context.Background(), models.Stage("bogus")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestHistory_NoLedger(t *testing.T) {
	layout, store := testutil.TestLayout(t)
	svc := NewService(store, layout, keyFlag(true))
	entries, err := svc.History(context.Background(), 10)
	if err != nil || entries == nil || len(entries) != 0 {
		t.Errorf("expected empty history, got %v, %v", entries, err)
	}
}
