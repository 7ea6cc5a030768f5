package qdrant

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"solver_gateway/cache"
	"solver_gateway/errs"
)

// Payload keys stored on every point.
const (
	payloadQuestion  = "question"
	payloadAnswer    = "answer"
	payloadHitCount  = "hitCount"
	payloadTimestamp = "timestamp"
)

// Store implements cache.Store using Qdrant as the backend.
type Store struct {
	qdrantClient   *qdrant.Client
	dimensions     int
	collectionName string
	log            *slog.Logger
}

// New connects to Qdrant and creates the collection (cosine distance) when
// it does not exist yet.
func New(ctx context.Context, qdrantHost string, qdrantPort int, collectionName string, dimensions int, log *slog.Logger) (*Store, error) {
	qclient, err := qdrant.NewClient(&qdrant.Config{
		Host: qdrantHost,
		Port: qdrantPort,
	})
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to create qdrant client")
	}

	s := &Store{
		qdrantClient:   qclient,
		dimensions:     dimensions,
		collectionName: collectionName,
		log:            log,
	}
	if err := s.createCollection(ctx); err != nil {
		_ = qclient.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.qdrantClient.Close()
}

func (s *Store) createCollection(ctx context.Context) error {
	isExist, err := s.qdrantClient.CollectionExists(ctx, s.collectionName)
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to check if collection %s exists", s.collectionName)
	}
	if isExist {
		info, err := s.qdrantClient.GetCollectionInfo(ctx, s.collectionName)
		if err != nil {
			return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to read collection %s", s.collectionName)
		}
		return checkCollection(info, s.dimensions)
	}

	err = s.qdrantClient.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to create collection %s", s.collectionName)
	}
	s.log.Info("created qdrant collection", "collection", s.collectionName, "dimensions", s.dimensions)
	return nil
}

// checkCollection rejects an existing collection whose unnamed vector does
// not have the configured size or is not compared by cosine distance.
func checkCollection(info *qdrant.CollectionInfo, dimensions int) error {
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return errs.New(errs.CodeConfigInvalid, "qdrant collection has no single unnamed vector")
	}
	if params.GetSize() != uint64(dimensions) {
		return errs.New(errs.CodeConfigInvalid, "qdrant collection vector size does not match embedding.dimensions",
			errs.Field("collection", params.GetSize()), errs.Field("want", dimensions))
	}
	if params.GetDistance() != qdrant.Distance_Cosine {
		return errs.New(errs.CodeConfigInvalid, "qdrant collection must use cosine distance",
			errs.Field("distance", params.GetDistance().String()))
	}
	return nil
}

func (s *Store) FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int) ([]cache.Match, error) {
	if err := cache.CheckDimensions(embedding, s.dimensions); err != nil {
		return nil, err
	}

	searchResult, err := s.qdrantClient.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQueryDense(embedding),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayloadInclude(payloadAnswer),
		ScoreThreshold: qdrant.PtrOf(threshold),
	})
	if err != nil {
		return nil, errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to search qdrant")
	}

	matches := make([]cache.Match, 0, len(searchResult))
	for _, point := range searchResult {
		answer, ok := point.GetPayload()[payloadAnswer]
		if !ok {
			s.log.Warn("qdrant point without answer payload", "record_id", point.GetId().GetUuid())
			continue
		}
		matches = append(matches, cache.Match{
			ID:     point.GetId().GetUuid(),
			Score:  point.GetScore(),
			Answer: answer.GetStringValue(),
		})
	}
	return matches, nil
}

func (s *Store) Insert(ctx context.Context, item cache.CachedQuestion) (string, error) {
	if err := cache.CheckDimensions(item.Embedding, s.dimensions); err != nil {
		return "", err
	}

	pointID := item.ID
	if pointID == "" {
		pointID = uuid.New().String()
	}
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.qdrantClient.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(pointID),
				Vectors: qdrant.NewVectorsDense(item.Embedding),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadQuestion:  item.QuestionText,
					payloadAnswer:    item.Answer,
					payloadHitCount:  item.HitCount,
					payloadTimestamp: createdAt.Unix(),
				}),
			},
		},
	})
	if err != nil {
		return "", errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to store qdrant point")
	}
	return pointID, nil
}

// IncrementHit reads the current count and writes it back plus one. Qdrant
// has no atomic payload increment; concurrent hits on the same point may
// undercount, which the informational counter tolerates.
func (s *Store) IncrementHit(ctx context.Context, id string) error {
	points, err := s.qdrantClient.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collectionName,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithPayload:    qdrant.NewWithPayloadInclude(payloadHitCount),
	})
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to read qdrant point %s", id)
	}
	if len(points) == 0 {
		return errs.New(errs.CodeStoreUnavailable, "fail to increment hit count: point not found",
			errs.FieldRecordID(id))
	}

	count := points[0].GetPayload()[payloadHitCount].GetIntegerValue()
	_, err = s.qdrantClient.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: s.collectionName,
		Payload:        qdrant.NewValueMap(map[string]any{payloadHitCount: count + 1}),
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewID(id)),
	})
	if err != nil {
		return errs.Wrapf(err, errs.CodeStoreUnavailable, "fail to update hit count of %s", id)
	}
	return nil
}
