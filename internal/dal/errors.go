package dal

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrNotFound is returned by QueryOne and Get when no row matches.
	ErrNotFound = errors.New("dal: not found")

	// ErrConnectionLost is matched by errors raised once the reconnect budget is spent.
	ErrConnectionLost = errors.New("dal: connection lost")

	// ErrQueryFailure is matched by every other classified SQL failure.
	ErrQueryFailure = errors.New("dal: query failure")

	// ErrTxActive is returned by BeginTransaction when the handle already has an open transaction.
	ErrTxActive = errors.New("dal: transaction already open")

	// ErrNoTx is returned by Commit and Rollback outside a transaction.
	ErrNoTx = errors.New("dal: no open transaction")

	// ErrInvalidIdentifier is returned when a table or column name sanitizes to nothing.
	ErrInvalidIdentifier = errors.New("dal: invalid identifier")

	// ErrMissingWhere is returned by Update and Delete when no WHERE clause is given.
	ErrMissingWhere = errors.New("dal: refusing to update or delete without a where clause")

	// ErrNoFields is returned by Insert and Update when the field map is empty.
	ErrNoFields = errors.New("dal: no fields")
)

const publicMessage = "service unavailable"

// Kind classifies a DAL failure.
type Kind uint8

const (
	KindQuery Kind = iota + 1
	KindConnectionLost
)

func (k Kind) String() string {
	switch k {
	case KindConnectionLost:
		return "connection_lost"
	case KindQuery:
		return "query_failure"
	default:
		return "unknown"
	}
}

// Error is a classified DAL failure. Its Error method only exposes the
// underlying driver message when the DAL runs in development mode; in
// production it returns a generic message carrying Ref, which is also logged
// next to the full detail so operators can correlate the two.
type Error struct {
	Kind   Kind
	Op     string
	Query  string
	Params []Param // already redacted
	Ref    string
	Err    error

	development bool
}

func (e *Error) Error() string {
	if e.development {
		return fmt.Sprintf("dal %s (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (ref %s)", publicMessage, e.Ref)
}

// Detail always returns the full technical message, for server-side use only.
func (e *Error) Detail() string {
	return fmt.Sprintf("dal %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on the classification with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConnectionLost:
		return e.Kind == KindConnectionLost
	case ErrQueryFailure:
		return e.Kind == KindQuery
	}
	return false
}

// LogValue implements slog.LogValuer.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", e.Kind.String()),
		slog.String("op", e.Op),
		slog.String("ref", e.Ref),
		slog.String("cause", fmt.Sprint(e.Err)),
	}
	if e.Query != "" {
		attrs = append(attrs, slog.String("query", e.Query))
	}
	if len(e.Params) > 0 {
		attrs = append(attrs, slog.Attr{Key: "params", Value: paramsValue(e.Params)})
	}
	return slog.GroupValue(attrs...)
}
