// Package history appends run records to the history file.
// The file is written only by appending one line per record; reading,
// summarizing and rotating it is left to other tools.
package history

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/CZERTAINLY/Syncer/internal/model"
)

type File struct {
	mx   sync.Mutex
	path string
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Append writes rec as a single line. The file is opened with O_APPEND and
// each record is a single write, so lines of concurrent runs or processes
// never interleave.
func (f *File) Append(ctx context.Context, rec model.RunRecord) error {
	f.mx.Lock()
	defer f.mx.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	fp, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	_, werr := fp.WriteString(rec.String() + "\n")
	cerr := fp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	slog.DebugContext(ctx, "history appended", "entity_id", rec.EntityID, "status", rec.Status)
	return nil
}

// Read parses the whole history file. Malformed lines are skipped.
// A missing file is an empty history.
func Read(path string) ([]model.RunRecord, error) {
	fp, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = fp.Close()
	}()

	var ret []model.RunRecord
	scanner := bufio.NewScanner(fp)
	for scanner.Scan() {
		rec, err := model.ParseRunRecord(scanner.Text())
		if err != nil {
			slog.Debug("skipping history line", "error", err)
			continue
		}
		ret = append(ret, rec)
	}
	return ret, scanner.Err()
}

// Discard is an appender which records nothing.
type Discard struct{}

func (Discard) Append(context.Context, model.RunRecord) error { return nil }
