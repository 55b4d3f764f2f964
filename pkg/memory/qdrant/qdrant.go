// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package qdrant provides a Qdrant-backed memory.VectorStore used by the
// optional retrieval service.
package qdrant

import (
	"context"
	"fmt"
	"strconv"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/focusai/focus/pkg/memory"
)

// Store speaks the Qdrant gRPC API. Collections use cosine distance because
// the retriever thresholds on cosine similarity.
type Store struct {
	points      pb.PointsClient
	collections pb.CollectionsClient
}

// New dials the Qdrant gRPC endpoint without transport security; the store
// is expected to run on a trusted local network.
func New(addr string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	return &Store{
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// CreateCollection provisions a cosine-distance collection of the given
// vector dimensionality.
func (s *Store) CreateCollection(ctx context.Context, name string, vectorSize uint64) error {
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes points into the collection, converting payloads to the
// Qdrant value encoding. Unsupported payload value types are dropped.
func (s *Store) Upsert(ctx context.Context, collection string, points []memory.Point) error {
	converted := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		converted[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: p.Vector}}},
			Payload: encodePayload(p.Payload),
		}
	}

	if _, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Points:         converted,
	}); err != nil {
		return fmt.Errorf("qdrant: upsert: %w", err)
	}
	return nil
}

// Search returns the closest points above the score threshold, payloads
// included.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]memory.SearchResult, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		ScoreThreshold: &scoreThreshold,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	results := make([]memory.SearchResult, len(resp.Result))
	for i, scored := range resp.Result {
		id := pointID(scored.Id)
		results[i] = memory.SearchResult{
			ID:    id,
			Score: scored.Score,
			Point: memory.Point{
				ID:      id,
				Payload: decodePayload(scored.Payload),
			},
		}
	}
	return results, nil
}

func encodePayload(payload map[string]interface{}) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: val}}
		case int:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: val}}
		case float64:
			out[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}
		}
	}
	return out
}

func decodePayload(payload map[string]*pb.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *pb.Value_StringValue:
			out[k] = kind.StringValue
		case *pb.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *pb.Value_DoubleValue:
			out[k] = kind.DoubleValue
		}
	}
	return out
}

func pointID(id *pb.PointId) string {
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}
