package disklru_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/disklru/pkg/disklru"
)

const (
	testAppVersion = 100
	testValueCount = 2
	unbounded      = int64(1 << 40)
)

func openCache(tb testing.TB, dir string, maxSize int64) *disklru.Cache {
	tb.Helper()

	c, err := disklru.Open(disklru.Options{
		Dir:        dir,
		AppVersion: testAppVersion,
		ValueCount: testValueCount,
		MaxSize:    maxSize,
	})
	if err != nil {
		tb.Fatalf("Open(%s): %v", dir, err)
	}

	tb.Cleanup(func() { _ = c.Close() })

	return c
}

func set(tb testing.TB, c *disklru.Cache, key, v0, v1 string) {
	tb.Helper()

	ed, ok, err := c.Edit(key)
	if err != nil || !ok {
		tb.Fatalf("Edit(%s)=(ok=%v, err=%v)", key, ok, err)
	}

	if err := ed.Set(0, v0); err != nil {
		tb.Fatalf("Set(0): %v", err)
	}

	if err := ed.Set(1, v1); err != nil {
		tb.Fatalf("Set(1): %v", err)
	}

	if err := ed.Commit(); err != nil {
		tb.Fatalf("Commit(%s): %v", key, err)
	}
}

func assertValue(tb testing.TB, c *disklru.Cache, key, v0, v1 string) {
	tb.Helper()

	snap, ok, err := c.Get(key)
	if err != nil || !ok {
		tb.Fatalf("Get(%s)=(ok=%v, err=%v), want present", key, ok, err)
	}
	defer snap.Close()

	for i, want := range []string{v0, v1} {
		got, err := snap.String(i)
		if err != nil {
			tb.Fatalf("String(%d): %v", i, err)
		}

		if got != want {
			tb.Fatalf("%s[%d]=%q, want=%q", key, i, got, want)
		}

		if got, want := snap.Length(i), int64(len(want)); got != want {
			tb.Fatalf("%s Length(%d)=%d, want=%d", key, i, got, want)
		}

		if !fileExists(filepath.Join(c.Dir(), cleanName(key, i))) {
			tb.Fatalf("clean file %s missing", cleanName(key, i))
		}
	}
}

func assertAbsent(tb testing.TB, c *disklru.Cache, key string) {
	tb.Helper()

	snap, ok, err := c.Get(key)
	if err != nil {
		tb.Fatalf("Get(%s): %v", key, err)
	}

	if ok {
		_ = snap.Close()
		tb.Fatalf("Get(%s) present, want absent", key)
	}

	for i := range testValueCount {
		for _, name := range []string{cleanName(key, i), cleanName(key, i) + ".tmp"} {
			if fileExists(filepath.Join(c.Dir(), name)) {
				tb.Fatalf("file %s exists, want deleted", name)
			}
		}
	}
}

func cleanName(key string, i int) string {
	return key + "." + string(rune('0'+i))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

func readFile(tb testing.TB, path string) string {
	tb.Helper()

	b, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("read %s: %v", path, err)
	}

	return string(b)
}

func writeFile(tb testing.TB, path, content string) {
	tb.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}

func header(magic, version, appVersion, valueCount, blank string) []string {
	return []string{magic, version, appVersion, valueCount, blank}
}

func defaultHeader() []string {
	return header("cache.DiskLruCache", "1", "100", "2", "")
}

// writeJournal writes a journal with the default header and the given body.
func writeJournal(tb testing.TB, dir string, body ...string) {
	tb.Helper()

	writeJournalWithHeader(tb, dir, defaultHeader(), body...)
}

func writeJournalWithHeader(tb testing.TB, dir string, hdr []string, body ...string) {
	tb.Helper()

	lines := append(append([]string(nil), hdr...), body...)
	writeFile(tb, filepath.Join(dir, "file"), strings.Join(lines, "\n")+"\n")
}

func journalLines(tb testing.TB, dir string) []string {
	tb.Helper()

	content := readFile(tb, filepath.Join(dir, "file"))

	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func assertJournal(tb testing.TB, dir string, body ...string) {
	tb.Helper()

	want := append(defaultHeader(), body...)
	if diff := cmp.Diff(want, journalLines(tb, dir)); diff != "" {
		tb.Fatalf("journal mismatch (-want +got):\n%s", diff)
	}
}

func journalSize(tb testing.TB, dir string) int64 {
	tb.Helper()

	info, err := os.Stat(filepath.Join(dir, "file"))
	if err != nil {
		tb.Fatalf("stat journal: %v", err)
	}

	return info.Size()
}

// copyDir copies the regular files of src into a new temp dir. It stands in
// for a second process finding the directory after a crash.
func copyDir(tb testing.TB, src string) string {
	tb.Helper()

	dst := tb.TempDir()

	entries, err := os.ReadDir(src)
	if err != nil {
		tb.Fatalf("read dir: %v", err)
	}

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		in, err := os.Open(filepath.Join(src, e.Name()))
		if err != nil {
			tb.Fatalf("open: %v", err)
		}

		out, err := os.Create(filepath.Join(dst, e.Name()))
		if err != nil {
			tb.Fatalf("create: %v", err)
		}

		_, copyErr := io.Copy(out, in)
		if err := errors.Join(copyErr, in.Close(), out.Close()); err != nil {
			tb.Fatalf("copy %s: %v", e.Name(), err)
		}
	}

	return dst
}

// garbage plants files a corruption recovery must remove.
func generateGarbage(tb testing.TB, dir string) {
	tb.Helper()

	writeFile(tb, filepath.Join(dir, "g1.0"), "A")
	writeFile(tb, filepath.Join(dir, "g1.1"), "B")
	writeFile(tb, filepath.Join(dir, "g2.0"), "C")
	writeFile(tb, filepath.Join(dir, "g2.1"), "D")
	writeFile(tb, filepath.Join(dir, "otherFile0"), "E")
	writeFile(tb, filepath.Join(dir, "dir1", "dir2", "otherFile1"), "F")
}

func assertGarbageDeleted(tb testing.TB, dir string) {
	tb.Helper()

	for _, name := range []string{"g1.0", "g1.1", "g2.0", "g2.1", "otherFile0", "dir1"} {
		if fileExists(filepath.Join(dir, name)) {
			tb.Fatalf("garbage %s survived recovery", name)
		}
	}
}

func removeFile(path string) error {
	return os.Remove(path)
}

func renameFile(from, to string) error {
	return os.Rename(from, to)
}
