package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	osfs := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "trace.csv")

	if osfs.Exists(path) {
		t.Fatal("file exists before it was written")
	}
	if err := osfs.WriteFile(path, []byte("1,2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !osfs.Exists(path) {
		t.Fatal("expected file to exist")
	}

	f, err := osfs.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "1,2\n" {
		t.Errorf("got %q", data)
	}

	w, err := osfs.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	io.WriteString(w, "3,4\n")
	w.Close()
	data, _ = osfs.ReadFile(path)
	if string(data) != "3,4\n" {
		t.Errorf("Create did not truncate: %q", data)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	src := []byte("hello")
	if err := mfs.WriteFile("/a/../test.prs", src, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src[0] = 'j'

	data, err := mfs.ReadFile("/test.prs")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected stored copy, got %q", data)
	}
	if !mfs.Exists("/test.prs") {
		t.Error("expected file to exist")
	}
}

func TestMemoryFileSystem_Open(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/p.prs", []byte("0123456789"), 0o644)

	f, err := mfs.Open("/p.prs")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, 4)
	if n, _ := f.Read(buf); n != 4 || string(buf) != "0123" {
		t.Errorf("first read = %q", buf[:n])
	}
	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 10 || info.Name() != "p.prs" || info.IsDir() {
		t.Errorf("unexpected info %+v", info)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Open("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open error = %v, want ErrNotExist", err)
	}
	if _, err := mfs.ReadFile("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile error = %v, want ErrNotExist", err)
	}
	if mfs.Exists("/nope") {
		t.Error("missing file reported as existing")
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/out.html")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	io.WriteString(w, "<html>")
	if data, _ := mfs.ReadFile("/out.html"); len(data) != 0 {
		t.Errorf("data visible before Close: %q", data)
	}
	w.Close()

	data, _ := mfs.ReadFile("/out.html")
	if string(data) != "<html>" {
		t.Errorf("got %q", data)
	}
}

func TestMemoryFileSystem_Names(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/b", nil, 0o644)
	mfs.WriteFile("/a", nil, 0o644)

	got := mfs.Names()
	if len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Errorf("Names() = %v", got)
	}
}
