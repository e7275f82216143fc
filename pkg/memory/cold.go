package memory

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
)

const coldMaxEntries = 200

// ColdMemory archives full tool outputs beyond the hot fact-sheet's
// ceiling, retrievable either by exact key or by semantic similarity.
// It is backed by chromem-go, an embedded vector store, rather than a
// second cache layer.
type ColdMemory struct {
	mu         sync.Mutex
	collection *chromem.Collection
	order      []string // keys, oldest first, for FIFO eviction
}

// NewColdMemory creates a cold archive backed by an in-process
// chromem-go collection, namespaced per session.
func NewColdMemory(sessionID string) (*ColdMemory, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection(sessionID, nil, hashEmbeddingFunc)
	if err != nil {
		return nil, err
	}
	return &ColdMemory{collection: collection}, nil
}

// Archive stores content under key, evicting the oldest entry first
// once the capacity ceiling is reached.
func (c *ColdMemory) Archive(ctx context.Context, key, content string, metadata map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["archived_at"] = time.Now().UTC().Format(time.RFC3339)

	if err := c.collection.AddDocument(ctx, chromem.Document{ID: key, Content: content, Metadata: metadata}); err != nil {
		return err
	}

	replaced := false
	for _, k := range c.order {
		if k == key {
			replaced = true
			break
		}
	}
	if !replaced {
		c.order = append(c.order, key)
	}

	for len(c.order) > coldMaxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		_ = c.collection.Delete(ctx, nil, nil, oldest)
	}
	return nil
}

// Get retrieves an entry by exact key. A missing key returns
// (nil, nil): retrieval never raises for an absent archive entry.
func (c *ColdMemory) Get(ctx context.Context, key string) (*ColdEntry, error) {
	doc, err := c.collection.GetByID(ctx, key)
	if err != nil {
		return nil, nil
	}
	return &ColdEntry{Key: doc.ID, Content: doc.Content, Metadata: doc.Metadata}, nil
}

// Recall performs semantic search over archived entries.
func (c *ColdMemory) Recall(ctx context.Context, query string, limit int) ([]ColdEntry, error) {
	count := c.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}
	results, err := c.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, err
	}

	entries := make([]ColdEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, ColdEntry{Key: r.ID, Content: r.Content, Metadata: r.Metadata})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// hashEmbeddingFunc is a deterministic, dependency-free embedding
// function: it hashes shingles of the input into a fixed-width
// vector. It trades semantic fidelity for zero external calls, which
// is acceptable for recall over an agent's own archived tool output
// rather than open-domain text.
func hashEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	const dims = 64
	vec := make([]float32, dims)
	words := splitWords(text)
	for _, w := range words {
		h := sha256.Sum256([]byte(w))
		idx := binary.BigEndian.Uint32(h[:4]) % dims
		vec[idx]++
	}
	normalize(vec)
	return vec, nil
}

func splitWords(text string) []string {
	var words []string
	start := -1
	for i, r := range text {
		isWord := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if isWord && start == -1 {
			start = i
		} else if !isWord && start != -1 {
			words = append(words, text[start:i])
			start = -1
		}
	}
	if start != -1 {
		words = append(words, text[start:])
	}
	return words
}

func normalize(vec []float32) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v * v)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] = vec[i] / norm
	}
}
