package page

import (
	"bytes"
	"path/filepath"
	"testing"

	"storemy/pkg/primitives"
)

func TestDiskManager_CreateReadWritePage(t *testing.T) {
	dm := NewDiskManager()
	path := primitives.Filepath(filepath.Join(t.TempDir(), "heap.dat"))

	id, err := dm.CreateFile(path)
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	f, err := dm.File(id)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}

	pageNo, err := f.AllocateNewPage()
	if err != nil {
		t.Fatalf("AllocateNewPage failed: %v", err)
	}
	if pageNo != 0 {
		t.Errorf("expected first allocated page to be 0, got %d", pageNo)
	}

	want := bytes.Repeat([]byte{0xAB}, PageSize)
	if err := f.WritePage(pageNo, want); err != nil {
		t.Fatalf("WritePage failed: %v", err)
	}

	got, err := f.ReadPage(pageNo)
	if err != nil {
		t.Fatalf("ReadPage failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("read back different bytes than written")
	}

	n, err := f.NumPages()
	if err != nil || n != 1 {
		t.Errorf("expected 1 page, got %d (err=%v)", n, err)
	}
}

func TestDiskManager_OpenFileIsIdempotent(t *testing.T) {
	dm := NewDiskManager()
	path := primitives.Filepath(filepath.Join(t.TempDir(), "heap.dat"))

	id1, err := dm.CreateFile(path)
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	id2, err := dm.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected same FileID, got %d and %d", id1, id2)
	}
}

func TestDiskManager_DestroyFileRemovesFromDisk(t *testing.T) {
	dm := NewDiskManager()
	path := primitives.Filepath(filepath.Join(t.TempDir(), "heap.dat"))

	id, err := dm.CreateFile(path)
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if err := dm.DestroyFile(id); err != nil {
		t.Fatalf("DestroyFile failed: %v", err)
	}
	if path.Exists() {
		t.Errorf("expected file to be removed from disk")
	}
	if _, err := dm.File(id); err == nil {
		t.Errorf("expected File lookup to fail after destroy")
	}
}

func TestDiskManager_NameOf(t *testing.T) {
	dm := NewDiskManager()
	path := primitives.Filepath(filepath.Join(t.TempDir(), "heap.dat"))

	id, err := dm.CreateFile(path)
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	name, ok := dm.NameOf(id)
	if !ok || name != path {
		t.Errorf("expected NameOf to reverse-map to %s, got %s (ok=%v)", path, name, ok)
	}
}
