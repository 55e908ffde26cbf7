package fs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func writeOnce(fsys FS, path string, data []byte) (int, error) {
	f, err := fsys.Create(path)
	if err != nil {
		return 0, err
	}

	n, err := f.Write(data)

	return n, errors.Join(err, f.Close())
}

func Test_Chaos_Passes_Through_When_Mode_Is_NoOp(t *testing.T) {
	t.Parallel()

	chaosFS := NewChaos(NewReal(), 12345, ChaosConfig{
		ReadFailRate:   1.0,
		WriteFailRate:  1.0,
		OpenFailRate:   1.0,
		RemoveFailRate: 1.0,
		StatFailRate:   1.0,
	})
	chaosFS.SetMode(ChaosModeNoOp)

	path := filepath.Join(t.TempDir(), "test.txt")

	if _, err := writeOnce(chaosFS, path, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := chaosFS.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if got, want := string(got), "hello"; got != want {
		t.Fatalf("ReadFile=%q, want=%q", got, want)
	}

	if got, want := chaosFS.Stats().Total(), int64(0); got != want {
		t.Fatalf("faults=%d, want=%d", got, want)
	}
}

func Test_Chaos_Toggles_Injection_When_Mode_Changes_On_Open_File(t *testing.T) {
	t.Parallel()

	chaosFS := NewChaos(NewReal(), 1, ChaosConfig{WriteFailRate: 1.0})
	chaosFS.SetMode(ChaosModeNoOp)

	f, err := chaosFS.Create(filepath.Join(t.TempDir(), "a.txt"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte("a")); err != nil {
		t.Fatalf("noop write: %v", err)
	}

	chaosFS.SetMode(ChaosModeActive)

	if _, err := f.Write([]byte("b")); err == nil {
		t.Fatal("active write: expected error")
	}

	chaosFS.SetMode(ChaosModeNoOp)

	if _, err := f.Write([]byte("c")); err != nil {
		t.Fatalf("noop write again: %v", err)
	}

	if got, want := chaosFS.Stats().WriteFails, int64(1); got != want {
		t.Fatalf("WriteFails=%d, want=%d", got, want)
	}
}

func Test_Chaos_Injects_Errno_Write_Error_When_Write_Fail_Rate_Is_One(t *testing.T) {
	t.Parallel()

	chaosFS := NewChaos(NewReal(), 12345, ChaosConfig{WriteFailRate: 1.0})

	_, err := writeOnce(chaosFS, filepath.Join(t.TempDir(), "test.txt"), []byte("hello"))
	if err == nil {
		t.Fatal("write unexpectedly succeeded")
	}

	if !IsChaosErr(err) {
		t.Fatalf("err=%v, want injected error", err)
	}

	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("err should be *os.PathError, got %T (%v)", err, err)
	}

	for _, e := range writeErrnos {
		if errors.Is(err, e) {
			return
		}
	}

	t.Fatalf("err=%v, want one of %v", err, writeErrnos)
}

func Test_Chaos_Partial_Write_Writes_Prefix_When_Partial_Write_Rate_Is_One(t *testing.T) {
	t.Parallel()

	chaosFS := NewChaos(NewReal(), 7, ChaosConfig{PartialWriteRate: 1.0})
	path := filepath.Join(t.TempDir(), "p.txt")

	n, err := writeOnce(chaosFS, path, []byte("0123456789"))
	if err == nil {
		t.Fatal("partial write returned nil error")
	}

	if n <= 0 || n >= 10 {
		t.Fatalf("n=%d, want in (0,10)", n)
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("read back: %v", readErr)
	}

	if got, want := string(data), "0123456789"[:n]; got != want {
		t.Fatalf("content=%q, want=%q", got, want)
	}
}

func Test_Chaos_Short_Reads_Do_Not_Lose_Bytes_When_Partial_Read_Rate_Is_One(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "r.txt")
	want := "the quick brown fox jumps over the lazy dog"

	if err := os.WriteFile(path, []byte(want), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	chaosFS := NewChaos(NewReal(), 99, ChaosConfig{PartialReadRate: 1.0})

	f, err := chaosFS.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if string(got) != want {
		t.Fatalf("content=%q, want=%q", got, want)
	}

	if chaosFS.Stats().PartialReads == 0 {
		t.Fatal("expected at least one short read")
	}
}

func Test_Chaos_Rename_Returns_Link_Error_When_Rename_Fail_Rate_Is_One(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old")

	if err := os.WriteFile(oldPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	chaosFS := NewChaos(NewReal(), 3, ChaosConfig{RenameFailRate: 1.0})

	err := chaosFS.Rename(oldPath, filepath.Join(dir, "new"))

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		t.Fatalf("err=%v (%T), want *os.LinkError", err, err)
	}

	if _, statErr := os.Stat(oldPath); statErr != nil {
		t.Fatalf("old path should survive injected rename: %v", statErr)
	}
}

func Test_Chaos_Never_Injects_Not_Exist_When_All_Rates_Are_One(t *testing.T) {
	t.Parallel()

	chaosFS := NewChaos(NewReal(), 5, ChaosConfig{
		OpenFailRate:     1.0,
		StatFailRate:     1.0,
		RemoveFailRate:   1.0,
		MkdirAllFailRate: 1.0,
		ReadDirFailRate:  1.0,
	})
	dir := t.TempDir()
	path := filepath.Join(dir, "x")

	_, openErr := chaosFS.Open(path)
	_, statErr := chaosFS.Stat(path)
	_, readDirErr := chaosFS.ReadDir(dir)

	errs := []error{
		openErr,
		statErr,
		chaosFS.Remove(path),
		chaosFS.MkdirAll(filepath.Join(dir, "d"), 0o755),
		readDirErr,
	}

	for i, err := range errs {
		if err == nil {
			t.Fatalf("op %d: expected injected error", i)
		}

		if errors.Is(err, syscall.ENOENT) || errors.Is(err, os.ErrNotExist) {
			t.Fatalf("op %d: injected ENOENT: %v", i, err)
		}
	}
}

func Test_Chaos_Close_Still_Closes_Descriptor_When_Close_Fails(t *testing.T) {
	t.Parallel()

	chaosFS := NewChaos(NewReal(), 11, ChaosConfig{CloseFailRate: 1.0})

	f, err := chaosFS.Create(filepath.Join(t.TempDir(), "c.txt"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.Close(); !IsChaosErr(err) {
		t.Fatalf("close err=%v, want injected", err)
	}

	if _, err := f.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("write after close err=%v, want os.ErrClosed", err)
	}
}
