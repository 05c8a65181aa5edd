package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleHAR is a minimal capture accepted by the fake backend.
const SampleHAR = `{"log":{"version":"1.2","entries":[{"request":{"method":"GET","url":"https://api.example.com/cart"}}]}}`

// WriteCapture writes SampleHAR under dir and returns its path.
func WriteCapture(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(SampleHAR), 0o644); err != nil {
		t.Fatalf("write capture %s: %v", path, err)
	}
	return path
}

// WriteFile fills path with exactly size bytes of a repeating pattern, so
// upload limits can be exercised without holding the data in memory. A
// size <= 0 creates an empty file.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	chunk := make([]byte, chunkSize)
	for i := range chunk {
		chunk[i] = 'x'
	}
	for remaining := size; remaining > 0; {
		n := min(remaining, int64(chunkSize))
		if _, err := f.Write(chunk[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}
