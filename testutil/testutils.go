package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/privmatch/matchnet/crypto"
)

// GenerateIdentifiers creates n distinct identifiers with a common prefix.
func GenerateIdentifiers(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%04d", prefix, i)
	}
	return out
}

// GenerateOverlap creates two distinct-element datasets of the given sizes
// sharing exactly `overlap` identifiers. Since each dataset is duplicate
// free, the pairwise match count equals the overlap.
func GenerateOverlap(sizeA, sizeB, overlap int) ([]string, []string) {
	if overlap > sizeA || overlap > sizeB {
		panic("overlap larger than a dataset")
	}

	shared := GenerateIdentifiers("shared", overlap)
	a := append(GenerateIdentifiers("only-a", sizeA-overlap), shared...)
	b := append(GenerateIdentifiers("only-b", sizeB-overlap), shared...)
	return a, b
}

// WriteDatasetCSV writes identifiers as a single-column CSV fixture with a
// header row and returns its path. The file lives in the test's temp dir.
func WriteDatasetCSV(t *testing.T, column string, identifiers []string) string {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{column}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for _, id := range identifiers {
		if err := w.Write([]string{id}); err != nil {
			t.Fatalf("write record: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush csv: %v", err)
	}

	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// FixedSeed returns a deterministic shared key for reproducible triple
// streams in tests.
func FixedSeed(fill byte) crypto.SharedKey {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = fill
	}
	return crypto.NewSharedKey(seed)
}
