package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// constraintHints maps schema constraint names to what the violation means
// in order-fulfillment terms, so a log line is actionable without opening
// the migration.
var constraintHints = map[string]string{
	"orders_order_number_key":               "order number already allocated",
	"idx_orders_order_number":               "order number already allocated",
	"order_lines_qty_check":                 "order line quantity must be positive",
	"inventory_records_available_qty_check": "available stock would go negative",
	"inventory_records_reserved_qty_check":  "reserved stock would go negative",
	"stock_releases_qty_check":              "release quantity must be positive",
}

// DBErrorDump carries the driver-level details of a failed statement. Both
// the pgx and the lib/pq error shapes feed it.
type DBErrorDump struct {
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

// ErrorDump is the loggable view of an error: the domain code and details
// from the typed error, the unwrap chain, and any database diagnostics
// buried in it.
type ErrorDump struct {
	TopMessage string         `json:"top_message"`
	Code       Code           `json:"code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Chain      []string       `json:"chain,omitempty"`
	DB         *DBErrorDump   `json:"db,omitempty"`
}

// Dump flattens an error for structured logging. It never fails and never
// returns secrets beyond what the error itself carries.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}

	if typed := As(err); typed != nil {
		d.Code = typed.Code()
		if details, ok := typed.Details().(map[string]any); ok {
			d.Details = details
		}
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	d.DB = dbDump(err)
	return d
}

func dbDump(err error) *DBErrorDump {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &DBErrorDump{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
			Hint:       constraintHints[pgxErr.ConstraintName],
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &DBErrorDump{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
			Hint:       constraintHints[pqErr.Constraint],
		}
	}

	return nil
}
