package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestJobLocks(t *testing.T) {
	t.Parallel()
	repo := openTempRepo(t)
	ctx := context.Background()
	lease := base.Add(time.Minute)

	ok, err := repo.AcquireJobLock(ctx, "recurrence", "a", base, lease)
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	if ok, err := repo.AcquireJobLock(ctx, "recurrence", "b", base.Add(30*time.Second), lease); ok || err != nil {
		t.Fatalf("acquire while held = %v, %v; want false", ok, err)
	}
	if ok, err := repo.AcquireJobLock(ctx, "allocation", "b", base, lease); !ok || err != nil {
		t.Fatalf("other job = %v, %v; want true", ok, err)
	}

	if ok, err := repo.ExtendJobLock(ctx, "recurrence", "b", lease.Add(time.Hour)); ok || err != nil {
		t.Errorf("extend with foreign token = %v, %v; want false", ok, err)
	}
	if ok, err := repo.ExtendJobLock(ctx, "recurrence", "a", lease.Add(time.Minute)); !ok || err != nil {
		t.Errorf("extend = %v, %v; want true", ok, err)
	}
	// the old lease end no longer frees it
	if ok, _ := repo.AcquireJobLock(ctx, "recurrence", "b", lease, lease.Add(time.Minute)); ok {
		t.Error("acquired an extended lock")
	}

	// a lease past its end is taken over
	if ok, err := repo.AcquireJobLock(ctx, "recurrence", "b", lease.Add(time.Minute), lease.Add(2*time.Minute)); !ok || err != nil {
		t.Fatalf("acquire expired = %v, %v; want true", ok, err)
	}
	if err := repo.ReleaseJobLock(ctx, "recurrence", "a"); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if ok, _ := repo.AcquireJobLock(ctx, "recurrence", "c", lease.Add(time.Minute), lease.Add(2*time.Minute)); ok {
		t.Error("stale holder's release freed the lock")
	}
	if err := repo.ReleaseJobLock(ctx, "recurrence", "b"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, err := repo.AcquireJobLock(ctx, "recurrence", "c", lease.Add(time.Minute), lease.Add(2*time.Minute)); !ok || err != nil {
		t.Errorf("acquire after release = %v, %v", ok, err)
	}
}

func TestSchemaStatus(t *testing.T) {
	t.Parallel()
	repo := openTempRepo(t)

	status, err := repo.SchemaStatus()
	if err != nil {
		t.Fatalf("SchemaStatus: %v", err)
	}
	if status.Latest != 2 {
		t.Errorf("latest = %d, want 2", status.Latest)
	}
	if !status.Current() {
		t.Errorf("status = %+v, want current", status)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	t.Parallel()
	dsn := dsnFor(filepath.Join(t.TempDir(), "fintrack.db"))
	for i := 0; i < 2; i++ {
		if err := RunMigrations(dsn); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
}
