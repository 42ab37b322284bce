package identity

import (
	"context"
	"errors"
)

// ErrNoPrincipal reports that no one is signed in.
var ErrNoPrincipal = errors.New("no authenticated principal")

// Principal is the authenticated identity the store scopes its reads
// and writes to. Authentication itself is handled by the external
// identity provider; this package only resolves its outcome.
type Principal struct {
	ID    string
	Email string
}

type Source interface {
	Current(ctx context.Context) (Principal, error)
}

// Static is a fixed principal, used by batch tools and tests.
type Static struct {
	Principal Principal
}

func (s Static) Current(ctx context.Context) (Principal, error) {
	return s.Principal, nil
}
