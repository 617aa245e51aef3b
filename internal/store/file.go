// Package store persists job and task definitions and keeps the in-memory
// registries the executor reads from.
//
// The definitions file is YAML, validated against the embedded CUE schema
// (definitions.cue) on every load. Saving writes a temporary file and renames
// it over the original, so readers never see a partial file.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/CZERTAINLY/Syncer/internal/model"

	_ "embed"
)

//go:embed definitions.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	schema = compiled.LookupPath(cue.ParsePath("#Definitions"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

// Decode validates YAML from r against the CUE schema and decodes it.
func Decode(r io.Reader) (model.Definitions, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return model.Definitions{}, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return model.Definitions{}, nil
	}

	yamlFile, err := cueyaml.Extract("jobs.yaml", raw)
	if err != nil {
		return model.Definitions{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return model.Definitions{}, err
	}

	// cue to json keeps the defaults and the custom unmarshalers of model types
	b, err := unified.MarshalJSON()
	if err != nil {
		return model.Definitions{}, err
	}
	var out model.Definitions
	if err := json.Unmarshal(b, &out); err != nil {
		return model.Definitions{}, err
	}
	return out, nil
}

// AssignIDs gives jobs and tasks without an id a new random one.
// Returns true if anything has changed.
func AssignIDs(defs *model.Definitions) bool {
	var changed bool
	for i := range defs.Jobs {
		if defs.Jobs[i].ID == "" {
			defs.Jobs[i].ID = uuid.NewString()
			changed = true
		}
	}
	for i := range defs.Tasks {
		if defs.Tasks[i].ID == "" {
			defs.Tasks[i].ID = uuid.NewString()
			changed = true
		}
	}
	return changed
}

// Encode writes definitions as YAML.
func Encode(w io.Writer, defs model.Definitions) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(defs); err != nil {
		return err
	}
	return enc.Close()
}

// File is the storage of definitions in a single YAML file.
type File struct {
	mx   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Load reads the definitions; a missing file means no definitions.
func (f *File) Load(ctx context.Context) (model.Definitions, error) {
	f.mx.Lock()
	defer f.mx.Unlock()

	fp, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.DebugContext(ctx, "definitions file does not exist", "path", f.path)
		return model.Definitions{}, nil
	}
	if err != nil {
		return model.Definitions{}, fmt.Errorf("opening definitions: %w", err)
	}
	defer func() {
		_ = fp.Close()
	}()

	defs, err := Decode(fp)
	if err != nil {
		return model.Definitions{}, fmt.Errorf("parsing definitions %s: %w", f.path, err)
	}
	return defs, nil
}

// Save replaces the file content with defs. Writers are serialized.
func (f *File) Save(ctx context.Context, defs model.Definitions) error {
	f.mx.Lock()
	defer f.mx.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary definitions: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := Encode(tmp, defs); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storing definitions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing definitions: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing definitions: %w", err)
	}
	slog.DebugContext(ctx, "definitions saved", "path", f.path, "jobs", len(defs.Jobs), "tasks", len(defs.Tasks))
	return nil
}
