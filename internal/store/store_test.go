package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"voxelforge.dev/internal/bcf"
	"voxelforge.dev/internal/cube"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testPayload() []byte {
	root := cube.Solid(cube.Empty).
		SetVoxel(cube.IVec{X: 0, Y: 0, Z: 0}, 2, 1).
		SetVoxel(cube.IVec{X: 3, Y: 2, Z: 1}, 2, 140)
	return bcf.Marshal(root)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	data := testPayload()

	info, err := s.Put("scene", data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.RawSize != int64(len(data)) {
		t.Errorf("raw size = %d, want %d", info.RawSize, len(data))
	}
	if info.MaxDepth != 2 {
		t.Errorf("max depth = %d, want 2", info.MaxDepth)
	}
	if info.RootOffset != bcf.HeaderSize {
		t.Errorf("root offset = %d, want %d", info.RootOffset, bcf.HeaderSize)
	}

	back, err := s.Get("scene")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(back, data) {
		t.Fatal("payload changed through the store")
	}
}

func TestPutRejectsInvalidPayload(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Put("bad", []byte("not a bcf file")); !errors.Is(err, bcf.ErrTruncated) && !errors.Is(err, bcf.ErrInvalidMagic) {
		t.Fatalf("Put accepted garbage: %v", err)
	}
}

func TestPutRejectsBadName(t *testing.T) {
	s := openTestStore(t)
	for _, name := range []string{"", "../escape", "a/b", ".hidden"} {
		if _, err := s.Put(name, testPayload()); !errors.Is(err, ErrBadName) {
			t.Errorf("Put(%q) = %v, want bad name", name, err)
		}
	}
}

func TestPutFailedIndexLeavesNoObjectFile(t *testing.T) {
	s := openTestStore(t)

	// Force the index insert to fail after the payload is validated
	// and compressed.
	if err := s.db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	if _, err := s.Put("scene", testPayload()); err == nil {
		t.Fatal("expected Put to fail with a closed index")
	}
	objPath := filepath.Join(s.dir, "objects", "scene.bcf.zst")
	if _, err := os.Stat(objPath); !os.IsNotExist(err) {
		t.Fatalf("orphaned object file left behind: stat err = %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestPutReplaces(t *testing.T) {
	s := openTestStore(t)
	first := bcf.Marshal(cube.Solid(1))
	second := bcf.Marshal(cube.Solid(2))

	if _, err := s.Put("scene", first); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put("scene", second); err != nil {
		t.Fatal(err)
	}

	back, err := s.Get("scene")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, second) {
		t.Fatal("Put did not replace existing asset")
	}

	infos, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("List returned %d rows, want 1", len(infos))
	}
}

func TestListOrdered(t *testing.T) {
	s := openTestStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := s.Put(name, testPayload()); err != nil {
			t.Fatal(err)
		}
	}
	infos, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(infos) != len(want) {
		t.Fatalf("got %d assets, want %d", len(infos), len(want))
	}
	for i, name := range want {
		if infos[i].Name != name {
			t.Errorf("List[%d] = %s, want %s", i, infos[i].Name, name)
		}
	}
}

func TestGetDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	info, err := s.Put("scene", testPayload())
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, info.Path)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-1] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get("scene"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want corruption error", err)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Put("scene", testPayload()); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("scene"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("scene"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want not found after delete", err)
	}
	if err := s.Delete("scene"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete = %v, want not found", err)
	}
}
