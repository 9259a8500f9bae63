package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input literal inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type idCount struct {
	ID    int64 `db:"id"`
	Count int   `db:"count"`
}

// countByIDs runs a grouped count query taking the id array as $1 and
// returning (id, count) rows. Ids without rows map to zero.
func countByIDs(ctx context.Context, db sqlx.QueryerContext, query string, ids []int64) (map[int64]int, error) {
	result := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []idCount
	if err := sqlx.SelectContext(ctx, db, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("count by ids: %w", err)
	}

	for _, id := range ids {
		result[id] = 0
	}
	for _, row := range rows {
		result[row.ID] = row.Count
	}
	return result, nil
}
