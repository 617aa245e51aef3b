package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CZERTAINLY/Syncer/internal/model"
)

type Storage interface {
	Load(ctx context.Context) (model.Definitions, error)
	Save(ctx context.Context, defs model.Definitions) error
}

// Catalog holds the job and task registries. Readers get copies, writers
// are serialized and every write is persisted through the Storage.
type Catalog struct {
	storage Storage

	mx      sync.RWMutex
	version int
	jobs    []model.Job
	jobIdx  map[string]int
	tasks   []model.Task
	taskIdx map[string]int

	saveMx sync.Mutex
}

// Open creates a catalog and loads the definitions from storage.
func Open(ctx context.Context, storage Storage) (*Catalog, error) {
	c := &Catalog{storage: storage}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload replaces the registries with the current storage content.
func (c *Catalog) Reload(ctx context.Context) error {
	defs, err := c.storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading definitions: %w", err)
	}
	changed := AssignIDs(&defs)

	jobIdx := make(map[string]int, len(defs.Jobs))
	for i, j := range defs.Jobs {
		if _, ok := jobIdx[j.ID]; ok {
			return fmt.Errorf("duplicate job id %q", j.ID)
		}
		jobIdx[j.ID] = i
	}
	taskIdx := make(map[string]int, len(defs.Tasks))
	for i, t := range defs.Tasks {
		if _, ok := taskIdx[t.ID]; ok {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		taskIdx[t.ID] = i
	}

	c.mx.Lock()
	c.version = defs.Version
	c.jobs, c.jobIdx = defs.Jobs, jobIdx
	c.tasks, c.taskIdx = defs.Tasks, taskIdx
	c.mx.Unlock()

	if changed {
		return c.save(ctx)
	}
	return nil
}

func (c *Catalog) Jobs() []model.Job {
	c.mx.RLock()
	defer c.mx.RUnlock()
	ret := make([]model.Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		ret = append(ret, j.Clone())
	}
	return ret
}

func (c *Catalog) Job(id string) (model.Job, bool) {
	c.mx.RLock()
	defer c.mx.RUnlock()
	i, ok := c.jobIdx[id]
	if !ok {
		return model.Job{}, false
	}
	return c.jobs[i].Clone(), true
}

// JobByName returns the first job with the given name.
func (c *Catalog) JobByName(name string) (model.Job, error) {
	c.mx.RLock()
	defer c.mx.RUnlock()
	for _, j := range c.jobs {
		if j.Name == name {
			return j.Clone(), nil
		}
	}
	return model.Job{}, fmt.Errorf("%w: %s", model.ErrJobNotFound, name)
}

func (c *Catalog) Tasks() []model.Task {
	c.mx.RLock()
	defer c.mx.RUnlock()
	ret := make([]model.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		ret = append(ret, t.Clone())
	}
	return ret
}

func (c *Catalog) Task(id string) (model.Task, bool) {
	c.mx.RLock()
	defer c.mx.RUnlock()
	i, ok := c.taskIdx[id]
	if !ok {
		return model.Task{}, false
	}
	return c.tasks[i].Clone(), true
}

// RecordJobRun stores the last run time and exit code of a job.
func (c *Catalog) RecordJobRun(ctx context.Context, jobID string, at time.Time, exitCode int) error {
	c.mx.Lock()
	i, ok := c.jobIdx[jobID]
	if !ok {
		c.mx.Unlock()
		return fmt.Errorf("%w: %s", model.ErrJobNotFound, jobID)
	}
	c.jobs[i].LastRun = model.NewTimestamp(at)
	c.jobs[i].LastRunExitCode = &exitCode
	c.mx.Unlock()
	return c.save(ctx)
}

// RecordTaskRun stores the last run time and exit code of a task.
func (c *Catalog) RecordTaskRun(ctx context.Context, taskID string, at time.Time, exitCode int) error {
	c.mx.Lock()
	i, ok := c.taskIdx[taskID]
	if !ok {
		c.mx.Unlock()
		return fmt.Errorf("%w: %s", model.ErrTaskNotFound, taskID)
	}
	c.tasks[i].LastRun = model.NewTimestamp(at)
	c.tasks[i].LastRunExitCode = &exitCode
	c.mx.Unlock()
	return c.save(ctx)
}

func (c *Catalog) snapshot() model.Definitions {
	c.mx.RLock()
	defer c.mx.RUnlock()
	defs := model.Definitions{Version: c.version}
	for _, j := range c.jobs {
		defs.Jobs = append(defs.Jobs, j.Clone())
	}
	for _, t := range c.tasks {
		defs.Tasks = append(defs.Tasks, t.Clone())
	}
	return defs
}

// save persists the latest snapshot, one writer at a time. Taking the
// snapshot under saveMx makes sure the last save carries the last write.
func (c *Catalog) save(ctx context.Context) error {
	c.saveMx.Lock()
	defer c.saveMx.Unlock()
	if err := c.storage.Save(ctx, c.snapshot()); err != nil {
		return fmt.Errorf("saving definitions: %w", err)
	}
	return nil
}
