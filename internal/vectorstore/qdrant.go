package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"aiact-rag/internal/contextutil"
)

// QdrantStore implements VectorStore on Qdrant. The store's name is a
// collection alias; each Replace builds a fresh versioned collection
// and repoints the alias at it, so readers always resolve a fully
// committed entry set.
type QdrantStore struct {
	client     *qdrant.Client
	alias      string
	vectorSize int
}

// NewQdrantStore creates a Qdrant-backed store.
// urlStr should be in the format "http://host:port" (e.g.
// "http://localhost:6333"); the gRPC port is derived from the HTTP
// port.
func NewQdrantStore(urlStr, alias string, vectorSize int) (*QdrantStore, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client:     client,
		alias:      alias,
		vectorSize: vectorSize,
	}, nil
}

var versionCounter atomic.Uint64

// versionName derives a fresh concrete collection name for one build.
// The counter disambiguates builds landing on the same clock tick.
func versionName(alias string) string {
	return fmt.Sprintf("%s_v%d_%d", alias, time.Now().UnixNano(), versionCounter.Add(1))
}

// isVersionOf reports whether name is a versioned collection of alias.
func isVersionOf(alias, name string) bool {
	return strings.HasPrefix(name, alias+"_v")
}

// Replace upserts the full entry set into a new versioned collection,
// then repoints the alias in a single alias operation. Readers
// resolving the alias switch between complete entry sets and never see
// the build in progress. The collection superseded by the swap is kept
// until the next Replace, so a search that resolved it just before the
// swap still completes.
func (s *QdrantStore) Replace(ctx context.Context, entries []Entry) error {
	logger := contextutil.LoggerFromContext(ctx)

	current, err := s.resolveAlias(ctx)
	if err != nil {
		return err
	}
	if err := s.dropVersions(ctx, current); err != nil {
		return err
	}

	version := versionName(s.alias)
	if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: version,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if len(entries) > 0 {
		points := make([]*qdrant.PointStruct, 0, len(entries))
		for _, entry := range entries {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(entry.ID),
				Vectors: qdrant.NewVectors(entry.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"locator":   entry.Locator,
					"sub_index": entry.SubIndex,
					"ordinal":   entry.Ordinal,
					"text":      entry.Text,
				}),
			})
		}

		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: version,
			Points:         points,
		}); err != nil {
			_ = s.client.DeleteCollection(ctx, version)
			logger.ErrorContext(ctx, "failed to upsert points", "collection", version, "count", len(points), "error", err)
			return fmt.Errorf("failed to upsert points: %w", err)
		}
	}

	actions := make([]*qdrant.AliasOperations, 0, 2)
	if current != "" {
		actions = append(actions, &qdrant.AliasOperations{
			Action: &qdrant.AliasOperations_DeleteAlias{
				DeleteAlias: &qdrant.DeleteAlias{AliasName: s.alias},
			},
		})
	}
	actions = append(actions, &qdrant.AliasOperations{
		Action: &qdrant.AliasOperations_CreateAlias{
			CreateAlias: &qdrant.CreateAlias{AliasName: s.alias, CollectionName: version},
		},
	})
	if err := s.client.UpdateAliases(ctx, actions); err != nil {
		_ = s.client.DeleteCollection(ctx, version)
		return fmt.Errorf("failed to switch alias: %w", err)
	}

	logger.InfoContext(ctx, "replaced collection entries",
		"alias", s.alias, "collection", version, "count", len(entries))
	return nil
}

// resolveAlias returns the concrete collection the alias points at, or
// "" when no build has committed yet.
func (s *QdrantStore) resolveAlias(ctx context.Context) (string, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list aliases: %w", err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == s.alias {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

// dropVersions deletes versioned collections of this alias other than
// keep. Running before a build, it clears staging collections stranded
// by failed builds and the collection superseded two builds ago.
func (s *QdrantStore) dropVersions(ctx context.Context, keep string) error {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range names {
		if name == keep || !isVersionOf(s.alias, name) {
			continue
		}
		if err := s.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to drop superseded collection %s: %w", name, err)
		}
	}
	return nil
}

// Search returns the k nearest entries, ties re-broken locally by
// ordinal so ranking matches the other backends.
func (s *QdrantStore) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	collection, err := s.resolveAlias(ctx)
	if err != nil {
		return nil, err
	}
	if collection == "" {
		return []SearchResult{}, nil
	}

	limit := uint64(k)
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, 0, len(scored))
	for _, point := range scored {
		r := SearchResult{Score: point.Score}
		if point.Id != nil {
			r.EntryID = point.Id.GetUuid()
		}
		fillFromPayload(&r, point.Payload)
		results = append(results, r)
	}

	sortResults(results)
	return results, nil
}

// List scrolls the full entry set in document order. Vectors are not
// fetched; List is a metadata view.
func (s *QdrantStore) List(ctx context.Context) ([]Entry, error) {
	collection, err := s.resolveAlias(ctx)
	if err != nil {
		return nil, err
	}
	if collection == "" {
		return nil, nil
	}

	count, err := s.countCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	limit := uint32(count)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	entries := make([]Entry, 0, len(points))
	for _, point := range points {
		var r SearchResult
		if point.Id != nil {
			r.EntryID = point.Id.GetUuid()
		}
		fillFromPayload(&r, point.Payload)
		entries = append(entries, Entry{
			ID:       r.EntryID,
			Locator:  r.Locator,
			SubIndex: r.SubIndex,
			Ordinal:  r.Ordinal,
			Text:     r.Text,
		})
	}

	// Scroll order is not document order; restore it.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Ordinal < entries[j-1].Ordinal; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	return entries, nil
}

// Count returns the number of points behind the alias.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	collection, err := s.resolveAlias(ctx)
	if err != nil {
		return 0, err
	}
	if collection == "" {
		return 0, nil
	}
	return s.countCollection(ctx, collection)
}

func (s *QdrantStore) countCollection(ctx context.Context, collection string) (int, error) {
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	if info.PointsCount == nil {
		return 0, nil
	}
	return int(*info.PointsCount), nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// fillFromPayload copies the citation metadata out of a point payload.
func fillFromPayload(r *SearchResult, payload map[string]*qdrant.Value) {
	for key, value := range payload {
		if value == nil {
			continue
		}
		switch key {
		case "locator":
			r.Locator = value.GetStringValue()
		case "text":
			r.Text = value.GetStringValue()
		case "sub_index":
			r.SubIndex = int(value.GetIntegerValue())
		case "ordinal":
			r.Ordinal = int(value.GetIntegerValue())
		}
	}
}
