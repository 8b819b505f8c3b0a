package archive

import (
	"bytes"
	"context"
	"testing"
)

func TestLocalFS_PutGetDelete(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS() error = %v", err)
	}
	ctx := context.Background()

	payload := []byte(`{"hello":"world"}`)
	if err := fs.Put(ctx, "nested/dir/data.json", payload); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := fs.Get(ctx, "nested/dir/data.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get() = %s, want %s", got, payload)
	}

	if err := fs.Delete(ctx, "nested/dir/data.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, ok, err = fs.Get(ctx, "nested/dir/data.json")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if ok {
		t.Error("Get() after delete ok = true, want false")
	}
}

func TestLocalFS_GetMissing(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS() error = %v", err)
	}

	_, ok, err := fs.Get(context.Background(), "never-written.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("ok = true for missing key")
	}
}

func TestLocalFS_DeleteMissingIsNoop(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS() error = %v", err)
	}
	if err := fs.Delete(context.Background(), "never-written.json"); err != nil {
		t.Errorf("Delete() error = %v, want nil", err)
	}
}

func TestLocalFS_PutOverwrites(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS() error = %v", err)
	}
	ctx := context.Background()

	if err := fs.Put(ctx, "data.json", []byte("v1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := fs.Put(ctx, "data.json", []byte("v2")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, _, err := fs.Get(ctx, "data.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("Get() = %s, want v2", got)
	}
}
