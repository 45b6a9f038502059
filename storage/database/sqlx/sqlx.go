package sqlxrepos

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// postgres error codes
const (
	foreignKeyViolation  = "23503"
	uniqueViolation      = "23505"
	invalidTextRepresent = "22P02"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func pqCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

// trapNoRowsErr returns notFoundErr when err means that nothing matched the query.
// Malformed UUIDs cannot match anything either.
func trapNoRowsErr(err, notFoundErr error) error {
	if errors.Cause(err) == sql.ErrNoRows || pqCode(err) == invalidTextRepresent {
		return notFoundErr
	}
	return err
}
