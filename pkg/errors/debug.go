package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Retryable  bool   `json:"retryable"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
}

// Dump flattens an error chain into loggable fields.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	d.Retryable = Retryable(err)

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if pg := postgresDetails(err); pg != nil {
		d.PGCode = pg.code
		d.PGConstraint = pg.constraint
		d.PGTable = pg.table
		d.PGDetail = pg.detail
	}
	return d
}

// IsUniqueViolation reports whether err is a unique violation. When constraints
// are given, one of them must name the violated constraint.
func IsUniqueViolation(err error, constraints ...string) bool {
	if err == nil {
		return false
	}
	if pg := postgresDetails(err); pg != nil {
		if pg.code != pgUniqueViolation {
			return false
		}
		if len(constraints) == 0 {
			return true
		}
		for _, c := range constraints {
			if pg.constraint == c {
				return true
			}
		}
		return false
	}
	// sqlite and wrapped driver errors only carry text.
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique constraint") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if strings.Contains(msg, strings.ToLower(c)) {
			return true
		}
	}
	return false
}

type pgDetails struct {
	code       string
	constraint string
	table      string
	detail     string
}

func postgresDetails(err error) *pgDetails {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &pgDetails{
			code:       pgxErr.Code,
			constraint: pgxErr.ConstraintName,
			table:      pgxErr.TableName,
			detail:     pgxErr.Detail,
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &pgDetails{
			code:       string(pqErr.Code),
			constraint: pqErr.Constraint,
			table:      pqErr.Table,
			detail:     pqErr.Detail,
		}
	}
	return nil
}
