package pgsql

import (
	"github.com/jackc/pgx/v5"
	"github.com/zeptools/gw-typst/db/sqldb"
)

type Row struct {
	row pgx.Row
}

// Ensure pgsql.Row implements sqldb.Row interface
var _ sqldb.Row = (*Row)(nil)

func (r *Row) Scan(dest ...any) error {
	return mapErr(r.row.Scan(dest...))
}
