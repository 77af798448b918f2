package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mapcheck/internal/common"
	"github.com/ternarybob/mapcheck/internal/interfaces"
)

// Manager owns the database and the storage built on it
type Manager struct {
	db     *BadgerDB
	run    interfaces.RunStorage
	logger arbor.ILogger
}

// NewManager opens the database described by config
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		run:    NewRunStorage(db, logger),
		logger: logger,
	}

	logger.Debug().Msg("Badger storage manager initialized")

	return manager, nil
}

// RunStorage returns the run history storage
func (m *Manager) RunStorage() interfaces.RunStorage {
	return m.run
}

// Prune deletes every run except the newest keep, then compacts the value log.
// It returns the number of runs deleted.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative, got %d", keep)
	}

	runs, err := m.run.ListRuns(ctx, nil)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i := keep; i < len(runs); i++ {
		if err := m.run.DeleteRun(ctx, runs[i].ID); err != nil {
			return deleted, err
		}
		deleted++
	}

	if deleted > 0 {
		if err := m.db.Compact(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to compact run history")
		}
	}

	m.logger.Info().Int("deleted", deleted).Int("kept", len(runs)-deleted).Msg("Run history pruned")
	return deleted, nil
}

// Close closes the database
func (m *Manager) Close() error {
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			return err
		}
		m.logger.Debug().Msg("Badger storage closed")
	}
	return nil
}
