// Package joblog writes the output and error log of a job run.
//
// File names derive from the job name, e.g. job "Nightly backup" logs into
//
//	nightly-backup.log          output (and errors unless separated)
//	nightly-backup-errors.log   errors, if LogSeparateErrors is set
//
// LogMode decides how the files are opened:
//   - append: the same files, appended to
//   - replace: the same files, truncated on each run
//   - unique: new files per run, the name is suffixed with the run start
//     time (nightly-backup-20250301-100700.log); a separated error file
//     carries the same suffix (nightly-backup-20250301-100700-errors.log)
package joblog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gosimple/slug"

	"github.com/CZERTAINLY/Syncer/internal/model"
)

const uniqueLayout = "20060102-150405"

type Log struct {
	mx      sync.Mutex
	out     *os.File
	errs    *os.File // nil, own file or the same as out
	outPath string
	errPath string
	now     func() time.Time
}

// Discard returns a log which writes nothing.
func Discard() *Log {
	return &Log{}
}

// Open opens the log files of a job run started at started. Info lines are
// stamped with now, time.Now when nil.
// No file is created when the job logs neither output nor errors.
func Open(dir string, job model.Job, started time.Time, now func() time.Time) (*Log, error) {
	if !job.LogOutput && !job.LogErrors {
		return Discard(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	base := BaseName(job, started)
	flags := os.O_CREATE | os.O_WRONLY
	switch job.LogMode {
	case model.LogModeReplace, model.LogModeUnique:
		flags |= os.O_TRUNC
	default:
		flags |= os.O_APPEND
	}

	if now == nil {
		now = time.Now
	}
	l := &Log{now: now}
	if job.LogOutput || (job.LogErrors && !job.LogSeparateErrors) {
		l.outPath = filepath.Join(dir, base+".log")
		f, err := os.OpenFile(l.outPath, flags, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening output log: %w", err)
		}
		l.out = f
	}
	switch {
	case job.LogErrors && job.LogSeparateErrors:
		l.errPath = filepath.Join(dir, base+"-errors.log")
		f, err := os.OpenFile(l.errPath, flags, 0o644)
		if err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("opening error log: %w", err)
		}
		l.errs = f
	case job.LogErrors:
		l.errPath = l.outPath
		l.errs = l.out
	}
	if !job.LogOutput {
		// out may be open for errors only
		l.outPath = ""
	}
	return l, nil
}

// BaseName returns the file name of the logs without an extension.
func BaseName(job model.Job, started time.Time) string {
	base := slug.Make(job.Name)
	if base == "" {
		base = slug.Make(job.ID)
	}
	if job.LogMode == model.LogModeUnique {
		base += "-" + started.Format(uniqueLayout)
	}
	return base
}

// Output logs a line of standard output.
func (l *Log) Output(line string) {
	if l.outPath == "" {
		return
	}
	l.write(l.out, line)
}

// Error logs a line of error output.
func (l *Log) Error(line string) {
	l.write(l.errs, line)
}

// Info logs an engine message (hook started/finished and so on), using the output
// file when there is one.
func (l *Log) Info(format string, args ...any) {
	if l.out == nil && l.errs == nil {
		return
	}
	line := l.now().Format(time.DateTime) + " " + fmt.Sprintf(format, args...)
	if l.out != nil {
		l.write(l.out, line)
		return
	}
	l.write(l.errs, line)
}

func (l *Log) write(f *os.File, line string) {
	if f == nil {
		return
	}
	l.mx.Lock()
	defer l.mx.Unlock()
	_, _ = f.WriteString(line + "\n")
}

// Paths returns the output and error log paths, empty if not logged.
func (l *Log) Paths() (string, string) {
	return l.outPath, l.errPath
}

func (l *Log) Close() error {
	l.mx.Lock()
	defer l.mx.Unlock()
	var errs []error
	if l.out != nil {
		errs = append(errs, l.out.Close())
	}
	if l.errs != nil && l.errs != l.out {
		errs = append(errs, l.errs.Close())
	}
	l.out, l.errs = nil, nil
	return errors.Join(errs...)
}
