package http

import (
	"context"

	"github.com/tomdowns/cbatool/internal/operations"
)

// AnalysisService is the slice of the operations manager the handlers
// depend on. *operations.Manager satisfies it directly.
type AnalysisService interface {
	Start(ctx context.Context, req operations.Request) (string, error)
	Get(id string) (*operations.Snapshot, error)
	List() []*operations.Snapshot
	Results(id string) (*operations.Results, error)
	Cancel(id string) error
}
