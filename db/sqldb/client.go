package sqldb

import (
	"context"
	"errors"
)

// Client is the read side of a SQL database, as used by the template store.
type Client interface {
	Init() error
	Close() error
	GetConf() *Conf
	GetDSN() string
	Ping(ctx context.Context) error
	QueryRows(ctx context.Context, query string, args ...any) (Rows, error) // Eager. Fail upfront on statement execution
	QueryRow(ctx context.Context, query string, args ...any) Row            // Lazy. only fails at Scan()
}

var ErrNoRows = errors.New("sqldb: no rows in result set")
