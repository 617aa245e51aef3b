package store

import (
	"context"
	"sync"

	"github.com/CZERTAINLY/Syncer/internal/model"
)

// Memory keeps definitions in memory only, it counts saves.
type Memory struct {
	mx    sync.Mutex
	defs  model.Definitions
	saves int
}

func NewMemory(defs model.Definitions) *Memory {
	return &Memory{defs: clone(defs)}
}

func (m *Memory) Load(_ context.Context) (model.Definitions, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return clone(m.defs), nil
}

func (m *Memory) Save(_ context.Context, defs model.Definitions) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.defs = clone(defs)
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *Memory) Saves() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.saves
}

func clone(defs model.Definitions) model.Definitions {
	ret := model.Definitions{Version: defs.Version}
	for _, j := range defs.Jobs {
		ret.Jobs = append(ret.Jobs, j.Clone())
	}
	for _, t := range defs.Tasks {
		ret.Tasks = append(ret.Tasks, t.Clone())
	}
	return ret
}
