package store

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrDetail is a single, human readable problem found in a definitions file.
type ErrDetail struct {
	Path    string // jobs.0.hooks.before.command
	Code    string // missing_required | unknown_field | conflict | validation_error
	Message string
	File    string
	Line    int
	Column  int
}

func (d ErrDetail) String() string {
	pos := ""
	if d.File != "" {
		pos = fmt.Sprintf(" (%s:%d:%d)", d.File, d.Line, d.Column)
	}
	return fmt.Sprintf("%s: %s%s", d.Path, d.Message, pos)
}

func (d ErrDetail) Attr(name string) slog.Attr {
	return slog.Group(
		name,
		slog.String("code", d.Code),
		slog.String("path", d.Path),
		slog.String("message", d.Message),
		slog.String("file", d.File),
		slog.Int("line", d.Line),
		slog.Int("column", d.Column),
	)
}

var (
	reIncomplete = regexp.MustCompile(`(?i)incomplete value`)
	reNotAllowed = regexp.MustCompile(`(?i)not allowed|unknown field`)
	reConflict   = regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible|empty disjunction`)
)

// ErrDetails explains a Decode error, one entry per distinct position.
// Returns nil for errors not coming from CUE.
func ErrDetails(err error) []ErrDetail {
	if err == nil {
		return nil
	}
	var out []ErrDetail
	seen := make(map[string]struct{})
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		path := strings.TrimPrefix(strings.Join(e.Path(), "."), "#Definitions.")
		d := ErrDetail{
			Path:    path,
			Code:    classify(msg),
			Message: msg,
		}
		if pos := e.Position(); pos.IsValid() {
			d.File = pos.Filename()
			d.Line = pos.Line()
			d.Column = pos.Column()
		}
		key := d.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}

func classify(msg string) string {
	switch {
	case reIncomplete.MatchString(msg):
		return "missing_required"
	case reNotAllowed.MatchString(msg):
		return "unknown_field"
	case reConflict.MatchString(msg):
		return "conflict"
	default:
		return "validation_error"
	}
}
