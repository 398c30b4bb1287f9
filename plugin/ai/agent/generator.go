package agent

import (
	"context"

	"github.com/hrygo/personaflow/plugin/ai/generation"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

// Generator produces free text. *generation.Client implements it.
type Generator interface {
	GenerateText(ctx context.Context, req *generation.Request) (string, error)
}

// Retriever returns ranked recollections. *retrieval.Retriever implements it.
type Retriever interface {
	Retrieve(ctx context.Context, personaID, query string, limit int) ([]*recollection.Recollection, error)
}

// Generation purposes, one per call shape.
const (
	PurposeClassify   = "classify"
	PurposeReflex     = "reflex"
	PurposeDirect     = "direct"
	PurposeSupplement = "supplement"
	PurposeNoMemory   = "no_memory"
)

func float32Ptr(v float32) *float32 {
	return &v
}
