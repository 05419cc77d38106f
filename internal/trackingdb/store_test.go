package trackingdb_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pmt/internal/services"
	"pmt/internal/trackingdb"
)

func openStore(t *testing.T) *trackingdb.Store {
	t.Helper()
	store, err := trackingdb.Open(context.Background(), filepath.Join(t.TempDir(), "nested", "tracking.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	path := store.Path()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reopened, err := trackingdb.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = reopened.Close()
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	path := store.Path()
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	_, err = trackingdb.Open(ctx, path)
	if !errors.Is(err, trackingdb.ErrSchemaMismatch) || !errors.Is(err, services.ErrTargetUnavailable) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := trackingdb.Open(context.Background(), " "); !errors.Is(err, services.ErrTargetUnavailable) {
		t.Fatalf("expected target unavailable, got %v", err)
	}
}

func TestRowsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	var projectID int64
	err := store.Update(ctx, func(tx *trackingdb.Tx) error {
		proj, err := tx.InsertProject(trackingdb.ProjectRow{Code: "Heist", Name: "Heist", TankName: "heist"})
		if err != nil {
			return err
		}
		projectID = proj.ID
		if err := tx.PutAsset(projectID, trackingdb.AssetRow{Code: "JOHN", Type: "character", Placeholder: "/P/C"}); err != nil {
			return err
		}
		for i, code := range []string{"SQ0010", "SQ0020"} {
			if err := tx.PutSequence(projectID, trackingdb.SequenceRow{Code: code, Position: i}); err != nil {
				return err
			}
		}
		if err := tx.PutSequence(projectID, trackingdb.SequenceRow{Code: "SQ0011", Parent: "SQ0010"}); err != nil {
			return err
		}
		if err := tx.PutShot(projectID, trackingdb.ShotRow{Code: "0020", Sequence: "SQ0010", CutIn: 30, Duration: 30, Position: 1}); err != nil {
			return err
		}
		if err := tx.PutShot(projectID, trackingdb.ShotRow{Code: "0010", Sequence: "SQ0010", Duration: 30, Location: "HOUSE"}); err != nil {
			return err
		}
		task := trackingdb.TaskRow{EntityType: trackingdb.EntityAsset, EntityCode: "JOHN", Step: "rig", Content: "rig"}
		if err := tx.InsertTask(projectID, task); err != nil {
			return err
		}
		return tx.PutLink(projectID, trackingdb.LinkRow{Shot: "0010", Asset: "JOHN", Role: "character"})
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = store.View(ctx, func(tx *trackingdb.Tx) error {
		asset, found, err := tx.Asset(projectID, "JOHN")
		if err != nil || !found {
			t.Fatalf("asset: found=%v err=%v", found, err)
		}
		if diff := cmp.Diff(trackingdb.AssetRow{Code: "JOHN", Type: "character", Placeholder: "/P/C"}, asset); diff != "" {
			t.Fatalf("asset (-want +got):\n%s", diff)
		}

		seqs, err := tx.Sequences(projectID)
		if err != nil {
			t.Fatalf("sequences: %v", err)
		}
		var codes []string
		for _, s := range seqs {
			codes = append(codes, s.Code)
		}
		if diff := cmp.Diff([]string{"SQ0010", "SQ0020", "SQ0011"}, codes); diff != "" {
			t.Fatalf("sequence order (-want +got):\n%s", diff)
		}

		shots, err := tx.Shots(projectID, "SQ0010")
		if err != nil {
			t.Fatalf("shots: %v", err)
		}
		if len(shots) != 2 || shots[0].Code != "0010" || shots[0].Location != "HOUSE" || shots[1].CutIn != 30 {
			t.Fatalf("unexpected shots: %+v", shots)
		}

		has, err := tx.HasTask(projectID, trackingdb.TaskRow{EntityType: trackingdb.EntityAsset, EntityCode: "JOHN", Step: "rig", Content: "rig"})
		if err != nil || !has {
			t.Fatalf("task: has=%v err=%v", has, err)
		}
		if _, found, _ := tx.Link(projectID, "0010", "JOHN", "character"); !found {
			t.Fatal("expected character link")
		}
		if _, err := tx.Count(projectID, "projects; DROP TABLE shots"); err == nil {
			t.Fatal("expected unknown table to be rejected")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	boom := errors.New("boom")
	err := store.Update(ctx, func(tx *trackingdb.Tx) error {
		if _, err := tx.InsertProject(trackingdb.ProjectRow{Code: "X", Name: "X", TankName: "x"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	_ = store.View(ctx, func(tx *trackingdb.Tx) error {
		if _, found, _ := tx.Project("X"); found {
			t.Fatal("project should have been rolled back")
		}
		return nil
	})
}
