package corpus

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/kailas-cloud/medfind/internal/domain"
)

// Corpus is the prebuilt similarity index: a row-major float32 matrix plus a
// row-aligned list of catalog items. Vectors are normalized at build time, so
// inner product equals cosine similarity. Immutable after Load; safe for
// concurrent readers.
type Corpus struct {
	dim     int
	vectors []float32
	items   []domain.CatalogItem
}

// Load reads the corpus artifact from disk. The vectors file starts with a
// little-endian uint32 dimension header followed by rows of float32 values;
// the metadata file is a JSON array row-aligned with the matrix.
func Load(vectorsPath, metadataPath string) (*Corpus, error) {
	raw, err := os.ReadFile(filepath.Clean(vectorsPath))
	if err != nil {
		return nil, fmt.Errorf("read vectors %s: %w", vectorsPath, err)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("vectors file %s: missing dimension header", vectorsPath)
	}

	dim := int(binary.LittleEndian.Uint32(raw[:4]))
	if dim <= 0 {
		return nil, fmt.Errorf("vectors file %s: invalid dimension %d", vectorsPath, dim)
	}

	body := raw[4:]
	if len(body)%4 != 0 || (len(body)/4)%dim != 0 {
		return nil, fmt.Errorf("vectors file %s: %d bytes is not a whole number of %d-dim rows",
			vectorsPath, len(body), dim)
	}

	vectors := make([]float32, len(body)/4)
	for i := range vectors {
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}

	metaRaw, err := os.ReadFile(filepath.Clean(metadataPath))
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", metadataPath, err)
	}
	var items []domain.CatalogItem
	if err := json.Unmarshal(metaRaw, &items); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", metadataPath, err)
	}

	if len(items) != len(vectors)/dim {
		return nil, fmt.Errorf("corpus mismatch: %d metadata rows vs %d vector rows",
			len(items), len(vectors)/dim)
	}

	return &Corpus{dim: dim, vectors: vectors, items: items}, nil
}

// New builds an in-memory corpus. Used by offline index construction and tests.
func New(dim int, vectors []float32, items []domain.CatalogItem) (*Corpus, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	if len(vectors) != dim*len(items) {
		return nil, fmt.Errorf("corpus mismatch: %d metadata rows vs %d vector values",
			len(items), len(vectors))
	}
	return &Corpus{dim: dim, vectors: vectors, items: items}, nil
}

// Len returns the number of catalog rows.
func (c *Corpus) Len() int { return len(c.items) }

// Dim returns the vector dimensionality.
func (c *Corpus) Dim() int { return c.dim }

// Search returns the top-k rows by inner product with the query vector,
// descending score. A query of the wrong dimensionality returns nil.
func (c *Corpus) Search(vector []float32, k int) []domain.CatalogHit {
	if len(vector) != c.dim || len(c.items) == 0 || k <= 0 {
		return nil
	}

	hits := make([]domain.CatalogHit, len(c.items))
	for row := range c.items {
		var dot float32
		base := row * c.dim
		for i, q := range vector {
			dot += q * c.vectors[base+i]
		}
		hits[row] = domain.CatalogHit{Item: c.items[row], Score: float64(dot)}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}
