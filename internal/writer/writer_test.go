package writer_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pmt/internal/services"
	"pmt/internal/writer"
)

func TestMergePolicyDecide(t *testing.T) {
	cases := []struct {
		policy  writer.MergePolicy
		exists  bool
		same    bool
		want    writer.Outcome
		wantErr error
	}{
		{writer.MergeFail, false, false, writer.Created, nil},
		{writer.MergeFail, true, true, writer.Skipped, nil},
		{writer.MergeFail, true, false, "", services.ErrTargetConflict},
		{writer.MergeSkip, true, false, writer.Skipped, nil},
		{writer.MergeUpdate, true, false, writer.Updated, nil},
		{writer.MergeUpdate, true, true, writer.Skipped, nil},
	}
	for _, tc := range cases {
		got, err := tc.policy.Decide(writer.KindShot, "0010", tc.exists, tc.same)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s exists=%v same=%v: expected %v, got %v", tc.policy, tc.exists, tc.same, tc.wantErr, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%s exists=%v same=%v: got %q %v, want %q", tc.policy, tc.exists, tc.same, got, err, tc.want)
		}
	}
}

func TestParseMergePolicy(t *testing.T) {
	if p, err := writer.ParseMergePolicy(""); err != nil || p != writer.MergeFail {
		t.Fatalf("expected fail default, got %q %v", p, err)
	}
	if p, err := writer.ParseMergePolicy(" Update "); err != nil || p != writer.MergeUpdate {
		t.Fatalf("expected update, got %q %v", p, err)
	}
	if _, err := writer.ParseMergePolicy("merge"); !errors.Is(err, services.ErrTargetConfig) {
		t.Fatalf("expected target config error, got %v", err)
	}
}

func TestResultCountsAndJSON(t *testing.T) {
	res := writer.NewResult("engine", "/tmp/project")
	res.Record(writer.KindShot, writer.Created)
	res.Record(writer.KindShot, writer.Created)
	res.Record(writer.KindAsset, writer.Skipped)
	res.Record(writer.KindSequence, writer.Updated)

	if got := res.Get(writer.KindShot); got.Created != 2 || got.Total() != 2 {
		t.Fatalf("unexpected shot counts %+v", got)
	}
	if got := res.Totals(); got.Created != 2 || got.Updated != 1 || got.Skipped != 1 {
		t.Fatalf("unexpected totals %+v", got)
	}
	kinds := res.Kinds()
	if len(kinds) != 3 || kinds[0] != writer.KindAsset {
		t.Fatalf("unexpected kinds %v", kinds)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded writer.Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Get(writer.KindShot).Created != 2 || decoded.Writer != "engine" {
		t.Fatalf("unexpected decoded result %+v", decoded)
	}
}

func TestLockerSerializesSameKey(t *testing.T) {
	locker := writer.NewLocker(t.TempDir(), time.Second)
	ctx := context.Background()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.With(ctx, "tracking/Heist/shot/0010", func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			if err != nil {
				t.Errorf("With: %v", err)
			}
		}()
	}
	wg.Wait()
	if maxActive != 1 {
		t.Fatalf("expected exclusive access, saw %d concurrent holders", maxActive)
	}
}

func TestLockerTimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	holder := writer.NewLocker(dir, time.Second)
	waiter := writer.NewLocker(dir, 50*time.Millisecond)

	release := make(chan struct{})
	acquired := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- holder.With(context.Background(), "engine/S1E1", func() error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	err := waiter.With(context.Background(), "engine/S1E1", func() error { return nil })
	if !errors.Is(err, services.ErrTargetUnavailable) {
		t.Fatalf("expected busy identifier error, got %v", err)
	}

	if err := waiter.With(context.Background(), "engine/other", func() error { return nil }); err != nil {
		t.Fatalf("different key should not block: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("holder: %v", err)
	}
}

func TestLockerPropagatesCallbackError(t *testing.T) {
	locker := writer.NewLocker("", 0)
	boom := errors.New("boom")
	if err := locker.With(context.Background(), "k", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
}
