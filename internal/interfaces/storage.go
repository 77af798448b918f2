package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/mapcheck/internal/models"
)

// ErrRunNotFound is wrapped by lookups of runs that do not exist
var ErrRunNotFound = errors.New("run not found")

// RunListOptions filters run history queries
type RunListOptions struct {
	Scenario string
	Status   models.RunStatus
	Limit    int
}

// RunStorage persists scenario run records
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, opts *RunListOptions) ([]*models.RunRecord, error)
	LatestRun(ctx context.Context, scenario string) (*models.RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
}
