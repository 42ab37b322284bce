package gateway

import (
	"context"
	"errors"
)

// Record is a raw row as exchanged with the remote store.
type Record map[string]interface{}

// ErrConflict is the uniqueness-violation signal. Implementations wrap
// it so the store can translate the rejection into a domain failure.
var ErrConflict = errors.New("conflicts with an existing row")

type Filter struct {
	Column string
	Values []string
	OneOf  bool
}

func Eq(column string, value string) Filter {
	return Filter{Column: column, Values: []string{value}}
}

func In(column string, values ...string) Filter {
	return Filter{Column: column, Values: values, OneOf: true}
}

// Gateway is the record-oriented client for the remote relational
// store. Row-level security is enforced remotely: reads are already
// scoped to the requesting principal.
type Gateway interface {
	Select(ctx context.Context, table string, filters ...Filter) ([]Record, error)
	Insert(ctx context.Context, table string, rec Record) error
	Update(ctx context.Context, table string, id string, patch Record) error
	Delete(ctx context.Context, table string, id string) error
}
