package disklru_test

import (
	"fmt"
	"testing"
)

func BenchmarkGet(b *testing.B) {
	c := openCache(b, b.TempDir(), unbounded)

	for i := range 100 {
		set(b, c, fmt.Sprintf("k%d", i), "value-0", "value-1")
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		snap, ok, err := c.Get(fmt.Sprintf("k%d", i%100))
		if err != nil || !ok {
			b.Fatalf("Get=(ok=%v, err=%v)", ok, err)
		}

		_ = snap.Close()
	}
}

func BenchmarkSet(b *testing.B) {
	c := openCache(b, b.TempDir(), unbounded)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		set(b, c, fmt.Sprintf("k%d", i%1000), "value-0", "value-1")
	}
}

func BenchmarkSetWithEviction(b *testing.B) {
	c := openCache(b, b.TempDir(), 4096)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		set(b, c, fmt.Sprintf("k%d", i), "value-0", "value-1")
	}
}
