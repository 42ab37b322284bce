// Package gatewaytest provides an in-memory gateway for tests, with
// uniqueness rules and failure injection.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/irsalhamdi/edtech-platform/gateway"
)

type Gateway struct {
	mu      sync.Mutex
	tables  map[string][]gateway.Record
	unique  map[string][][]string
	failure error
}

func New() *Gateway {
	return &Gateway{
		tables: make(map[string][]gateway.Record),
		unique: make(map[string][][]string),
	}
}

// Unique declares a composite uniqueness rule, mirroring a remote
// unique constraint. Violating inserts fail with ErrConflict.
func (g *Gateway) Unique(table string, cols ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unique[table] = append(g.unique[table], cols)
}

// Seed loads rows directly, bypassing uniqueness rules.
func (g *Gateway) Seed(table string, recs ...gateway.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, rec := range recs {
		g.tables[table] = append(g.tables[table], clone(rec))
	}
}

// FailWith makes every following call return err until Recover.
func (g *Gateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failure = err
}

func (g *Gateway) Recover() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failure = nil
}

func (g *Gateway) Select(ctx context.Context, table string, filters ...gateway.Filter) ([]gateway.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failure != nil {
		return nil, g.failure
	}

	var out []gateway.Record
	for _, rec := range g.tables[table] {
		if matches(rec, filters) {
			out = append(out, clone(rec))
		}
	}
	return out, nil
}

func (g *Gateway) Insert(ctx context.Context, table string, rec gateway.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failure != nil {
		return g.failure
	}

	for _, cols := range g.unique[table] {
		for _, existing := range g.tables[table] {
			if sameKey(existing, rec, cols) {
				return fmt.Errorf("inserting into %s: %w", table, gateway.ErrConflict)
			}
		}
	}

	g.tables[table] = append(g.tables[table], clone(rec))
	return nil
}

func (g *Gateway) Update(ctx context.Context, table string, id string, patch gateway.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failure != nil {
		return g.failure
	}

	for _, rec := range g.tables[table] {
		if fmt.Sprintf("%v", rec["id"]) != id {
			continue
		}
		for k, v := range patch {
			rec[k] = v
		}
		return nil
	}
	return nil
}

func (g *Gateway) Delete(ctx context.Context, table string, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failure != nil {
		return g.failure
	}

	rows := g.tables[table]
	for i, rec := range rows {
		if fmt.Sprintf("%v", rec["id"]) == id {
			g.tables[table] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows returns a copy of the table's current content for assertions.
func (g *Gateway) Rows(table string) []gateway.Record {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]gateway.Record, 0, len(g.tables[table]))
	for _, rec := range g.tables[table] {
		out = append(out, clone(rec))
	}
	return out
}

func matches(rec gateway.Record, filters []gateway.Filter) bool {
	for _, f := range filters {
		got := fmt.Sprintf("%v", rec[f.Column])
		ok := false
		for _, v := range f.Values {
			if got == v {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func sameKey(a, b gateway.Record, cols []string) bool {
	for _, c := range cols {
		if fmt.Sprintf("%v", a[c]) != fmt.Sprintf("%v", b[c]) {
			return false
		}
	}
	return len(cols) > 0
}

func clone(rec gateway.Record) gateway.Record {
	out := make(gateway.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
