// Package postgres implements the gateway directly against postgres,
// for self-hosted deployments and integration tests. It does not
// enforce row-level security; callers get whatever the connection
// role can see.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/irsalhamdi/edtech-platform/gateway"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

type Gateway struct {
	db  *sqlx.DB
	log logrus.FieldLogger
}

func NewGateway(db *sqlx.DB, log logrus.FieldLogger) *Gateway {
	return &Gateway{db: db, log: log}
}

func (g *Gateway) Select(ctx context.Context, table string, filters ...gateway.Filter) ([]gateway.Record, error) {
	q := "SELECT * FROM " + pq.QuoteIdentifier(table)

	var args []interface{}
	var preds []string
	for _, f := range filters {
		col := pq.QuoteIdentifier(f.Column)
		if f.OneOf {
			preds = append(preds, col+" IN (?)")
			args = append(args, f.Values)
			continue
		}
		preds = append(preds, col+" = ?")
		args = append(args, f.Values[0])
	}
	if len(preds) > 0 {
		q += " WHERE " + strings.Join(preds, " AND ")
	}

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, fmt.Errorf("expanding query on %s: %w", table, err)
	}

	g.log.WithFields(logrus.Fields{"table": table, "filters": len(filters)}).Debug("selecting records")

	rows, err := g.db.QueryxContext(ctx, g.db.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", table, err)
	}
	defer rows.Close()

	var recs []gateway.Record
	for rows.Next() {
		rec := gateway.Record{}
		if err := rows.MapScan(rec); err != nil {
			return nil, fmt.Errorf("scanning row of %s: %w", table, err)
		}
		normalize(rec)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows of %s: %w", table, err)
	}

	return recs, nil
}

func (g *Gateway) Insert(ctx context.Context, table string, rec gateway.Record) error {
	cols := columns(rec)

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rec[c]
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	if _, err := g.db.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting into %s: %w", table, gateway.ErrConflict)
		}
		return fmt.Errorf("inserting into %s: %w", table, err)
	}

	return nil
}

func (g *Gateway) Update(ctx context.Context, table string, id string, patch gateway.Record) error {
	cols := columns(patch)
	if len(cols) == 0 {
		return nil
	}

	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(c), i+1)
		args = append(args, patch[c])
	}
	args = append(args, id)

	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		pq.QuoteIdentifier(table), strings.Join(sets, ", "), len(cols)+1)

	if _, err := g.db.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("updating %s[%s]: %w", table, id, gateway.ErrConflict)
		}
		return fmt.Errorf("updating %s[%s]: %w", table, id, err)
	}

	return nil
}

func (g *Gateway) Delete(ctx context.Context, table string, id string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE id = $1", pq.QuoteIdentifier(table))

	if _, err := g.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("deleting %s[%s]: %w", table, id, err)
	}

	return nil
}

func columns(rec gateway.Record) []string {
	cols := make([]string, 0, len(rec))
	for c := range rec {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// normalize converts driver byte slices to strings so records look the
// same regardless of which gateway produced them.
func normalize(rec gateway.Record) {
	for k, v := range rec {
		if b, ok := v.([]byte); ok {
			rec[k] = string(b)
		}
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
