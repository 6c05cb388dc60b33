package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hippo/pkg/adapter"
	"github.com/m-mizutani/hippo/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	firestoreBrainCollection  = "brains"
	firestoreMemoryCollection = "memories"
	firestoreEmbeddingField   = "embedding"
	firestoreDistanceField    = "vector_distance"
)

// Firestore keeps each collection as brains/{name} with memories in a
// subcollection. Similarity search needs a vector index on the embedding field.
type Firestore struct {
	client         *firestore.Client
	embedder       adapter.Embedder
	dimensionality int
}

type firestoreBrain struct {
	Name      string    `firestore:"name"`
	CreatedAt time.Time `firestore:"created_at"`
}

type firestoreMemory struct {
	ID        string             `firestore:"id"`
	Content   string             `firestore:"content"`
	Metadata  map[string]string  `firestore:"metadata"`
	Embedding firestore.Vector32 `firestore:"embedding"`
	CreatedAt time.Time          `firestore:"created_at"`
}

func NewFirestore(ctx context.Context, projectID, databaseID string, embedder adapter.Embedder, dimensionality int) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("firestore project is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	if embedder == nil {
		return nil, goerr.New("embedder is required")
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID),
		)
	}

	return &Firestore{
		client:         client,
		embedder:       embedder,
		dimensionality: dimensionality,
	}, nil
}

func (r *Firestore) ListCollections(ctx context.Context) ([]string, error) {
	iter := r.client.Collection(firestoreBrainCollection).Documents(ctx)
	defer iter.Stop()

	var names []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list brains")
		}
		names = append(names, doc.Ref.ID)
	}
	return names, nil
}

func (r *Firestore) GetCollection(ctx context.Context, name string) (Collection, error) {
	ref := r.client.Collection(firestoreBrainCollection).Doc(name)
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrCollectionNotFound, "no such firestore brain", goerr.V("name", name))
		}
		return nil, goerr.Wrap(err, "failed to get brain", goerr.V("name", name))
	}
	return r.collection(name), nil
}

func (r *Firestore) CreateCollection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, goerr.New("collection name is required")
	}

	ref := r.client.Collection(firestoreBrainCollection).Doc(name)
	if _, err := ref.Set(ctx, &firestoreBrain{Name: name, CreatedAt: time.Now().UTC()}); err != nil {
		return nil, goerr.Wrap(err, "failed to create brain", goerr.V("name", name))
	}
	return r.collection(name), nil
}

func (r *Firestore) DeleteCollection(ctx context.Context, name string) error {
	brain := r.client.Collection(firestoreBrainCollection).Doc(name)
	iter := brain.Collection(firestoreMemoryCollection).DocumentRefs(ctx)

	bw := r.client.BulkWriter(ctx)
	for {
		ref, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to list memories", goerr.V("name", name))
		}
		if _, err := bw.Delete(ref); err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue memory deletion", goerr.V("id", ref.ID))
		}
	}
	bw.End()

	if _, err := brain.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete brain", goerr.V("name", name))
	}
	return nil
}

func (r *Firestore) Close() error {
	if err := r.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}

func (r *Firestore) collection(name string) *firestoreCollection {
	return &firestoreCollection{
		repo: r,
		name: name,
		ref:  r.client.Collection(firestoreBrainCollection).Doc(name).Collection(firestoreMemoryCollection),
	}
}

type firestoreCollection struct {
	repo *Firestore
	name string
	ref  *firestore.CollectionRef
}

func (x *firestoreCollection) Name() string { return x.name }

func (x *firestoreCollection) Count(ctx context.Context) (int, error) {
	res, err := x.ref.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count memories", goerr.V("collection", x.name))
	}

	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, goerr.New("unexpected count aggregation result", goerr.V("collection", x.name))
	}
	return int(v.GetIntegerValue()), nil
}

func (x *firestoreCollection) Exists(ctx context.Context, id model.MemoryID) (bool, error) {
	if id == "" {
		return false, goerr.New("memory id is empty")
	}

	if _, err := x.ref.Doc(id.String()).Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to get memory", goerr.V("id", id))
	}
	return true, nil
}

func (x *firestoreCollection) Query(ctx context.Context, text string, limit int) ([]*model.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}

	vec, err := x.repo.embedder.Embedding(ctx, text, x.repo.dimensionality)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query text")
	}

	iter := x.ref.FindNearest(firestoreEmbeddingField, firestore.Vector32(vec), limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: firestoreDistanceField},
	).Documents(ctx)
	defer iter.Stop()

	var memories []*model.Memory
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to search memories", goerr.V("collection", x.name))
		}

		var fm firestoreMemory
		if err := doc.DataTo(&fm); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("id", doc.Ref.ID))
		}

		m := &model.Memory{
			ID:        model.MemoryID(fm.ID),
			Content:   fm.Content,
			Metadata:  fm.Metadata,
			Embedding: fm.Embedding,
			CreatedAt: fm.CreatedAt,
		}
		// cosine distance is 1 - similarity
		if d, ok := doc.Data()[firestoreDistanceField].(float64); ok {
			m.Similarity = float32(1 - d)
		}
		memories = append(memories, m)
	}
	return memories, nil
}

func (x *firestoreCollection) Put(ctx context.Context, memories ...*model.Memory) error {
	for _, m := range memories {
		vec := m.Embedding
		if len(vec) == 0 {
			var err error
			vec, err = x.repo.embedder.Embedding(ctx, m.Content, x.repo.dimensionality)
			if err != nil {
				return goerr.Wrap(err, "failed to embed memory", goerr.V("id", m.ID))
			}
		}

		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		metadata := m.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}

		doc := &firestoreMemory{
			ID:        m.ID.String(),
			Content:   m.Content,
			Metadata:  metadata,
			Embedding: firestore.Vector32(vec),
			CreatedAt: createdAt,
		}
		if _, err := x.ref.Doc(m.ID.String()).Set(ctx, doc); err != nil {
			return goerr.Wrap(err, "failed to put memory",
				goerr.V("collection", x.name),
				goerr.V("id", m.ID),
			)
		}
	}
	return nil
}
