package memory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nidhogg/openclaw/internal/embedding"
	"github.com/nidhogg/openclaw/internal/vectorstore"
)

// CollectionName is the qdrant collection backing long-term memory.
const CollectionName = "openclaw_memory"

// ErrStoreUnavailable is returned when the vector store cannot serve a
// store/query/delete call. Unlike model-output problems, store failures
// must surface to the caller.
var ErrStoreUnavailable = errors.New("long-term memory store unavailable")

// MemoryResult is a single search result from the vector store.
type MemoryResult struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata"`
}

// MemoryRecord is a stored record, used for inspection tooling.
type MemoryRecord struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// VectorMemory is the capability set the agent core requires from a
// long-term memory backend.
type VectorMemory interface {
	Store(ctx context.Context, text string, metadata map[string]string) (string, error)
	Query(ctx context.Context, text string, n int) ([]MemoryResult, error)
	GetAll(ctx context.Context) ([]MemoryRecord, error)
	Delete(ctx context.Context, id string) error
}

// vectorClient is the slice of vectorstore.Client the gateway uses.
type vectorClient interface {
	EnsureCollection(ctx context.Context, name string, dimension uint64) error
	Upsert(ctx context.Context, collection, id string, vector []float32, payload map[string]string) error
	Search(ctx context.Context, collection string, vector []float32, topK uint64) ([]*vectorstore.SearchResult, error)
	Scroll(ctx context.Context, collection string) ([]*vectorstore.Point, error)
	Delete(ctx context.Context, collection, id string) error
}

// LongTermMemory proxies store/query/list/delete to a qdrant collection,
// embedding text on the way in. Ownership of the records lives in the
// external store; this type holds no state of its own.
type LongTermMemory struct {
	embedder embedding.Provider
	store    vectorClient
	logger   *zap.Logger
}

// NewLongTermMemory creates a gateway over the given embedder and store.
func NewLongTermMemory(embedder embedding.Provider, store vectorClient, logger *zap.Logger) *LongTermMemory {
	return &LongTermMemory{embedder: embedder, store: store, logger: logger}
}

// Init ensures the backing collection exists.
func (l *LongTermMemory) Init(ctx context.Context) error {
	dim := uint64(l.embedder.Dimension())
	if dim == 0 {
		dim = 768
	}
	if err := l.store.EnsureCollection(ctx, CollectionName, dim); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Store embeds and persists a text chunk, returning the new record ID.
// Duplicate stores of identical text create distinct records.
func (l *LongTermMemory) Store(ctx context.Context, text string, metadata map[string]string) (string, error) {
	vectors, err := l.embedder.Embed(ctx, []string{text})
	if err != nil {
		return "", fmt.Errorf("%w: embed: %v", ErrStoreUnavailable, err)
	}
	if len(vectors) == 0 {
		return "", fmt.Errorf("%w: empty embedding result", ErrStoreUnavailable)
	}

	// Qdrant point IDs must be full UUIDs; the short form is what callers
	// see and what delete accepts.
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	payload := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		payload[k] = v
	}
	payload["text"] = text
	if _, ok := payload["stored_at"]; !ok {
		payload["stored_at"] = time.Now().UTC().Format(time.RFC3339)
	}

	if err := l.store.Upsert(ctx, CollectionName, pointID(id), vectors[0], payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	l.logger.Debug("stored long-term memory", zap.String("id", id))
	return id, nil
}

// Query returns up to n results sorted by ascending cosine distance.
func (l *LongTermMemory) Query(ctx context.Context, text string, n int) ([]MemoryResult, error) {
	if n <= 0 {
		n = 5
	}
	vectors, err := l.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", ErrStoreUnavailable, err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	hits, err := l.store.Search(ctx, CollectionName, vectors[0], uint64(n))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	results := make([]MemoryResult, 0, len(hits))
	for _, h := range hits {
		text, meta := splitPayload(h.Payload)
		results = append(results, MemoryResult{
			ID:   shortID(h.ID),
			Text: text,
			// Qdrant reports cosine similarity; convert so lower = closer.
			Distance: 1 - float64(h.Score),
			Metadata: meta,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// GetAll returns every stored record.
func (l *LongTermMemory) GetAll(ctx context.Context) ([]MemoryRecord, error) {
	points, err := l.store.Scroll(ctx, CollectionName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	records := make([]MemoryRecord, 0, len(points))
	for _, p := range points {
		text, meta := splitPayload(p.Payload)
		records = append(records, MemoryRecord{ID: shortID(p.ID), Text: text, Metadata: meta})
	}
	return records, nil
}

// shortIDRe matches the 12-hex record IDs handed out by Store.
var shortIDRe = regexp.MustCompile(`^[0-9a-f]{12}$`)

// Delete removes a record by ID. Deleting an absent ID is a no-op.
func (l *LongTermMemory) Delete(ctx context.Context, id string) error {
	// IDs arrive from user-facing surfaces. Anything that is not a 12-hex
	// record ID cannot exist in the collection, so treat it as absent.
	if !shortIDRe.MatchString(id) {
		return nil
	}
	if err := l.store.Delete(ctx, CollectionName, pointID(id)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// pointID pads a 12-hex short ID back into UUID shape for qdrant.
func pointID(short string) string {
	padded := short + strings.Repeat("0", 32-len(short))
	return padded[:8] + "-" + padded[8:12] + "-" + padded[12:16] + "-" + padded[16:20] + "-" + padded[20:32]
}

// shortID reverses pointID.
func shortID(full string) string {
	return strings.ReplaceAll(full, "-", "")[:12]
}

func splitPayload(payload map[string]string) (string, map[string]string) {
	meta := make(map[string]string, len(payload))
	var text string
	for k, v := range payload {
		if k == "text" {
			text = v
			continue
		}
		meta[k] = v
	}
	return text, meta
}
