package pgsql

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zeptools/gw-typst/db/sqldb"
)

type Client struct {
	Conf *sqldb.Conf

	pool *pgxpool.Pool
	dsn  string
}

// Ensure pgsql.Client implements sqldb.Client interface
var _ sqldb.Client = (*Client)(nil)

func init() {
	sqldb.RegisterFactory("pgsql", func(conf *sqldb.Conf) (sqldb.Client, error) {
		return &Client{Conf: conf}, nil
	})
}

func (c *Client) Init() error {
	if c.Conf.DSN != "" {
		c.dsn = c.Conf.DSN
	} else {
		// NOTE: sslmode=disable is often used for local dev, adjust as needed.
		c.dsn = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
			c.Conf.Host,
			c.Conf.Port,
			c.Conf.User,
			c.Conf.PW,
			c.Conf.DB,
			c.Conf.TZ,
		)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	config, err := pgxpool.ParseConfig(c.dsn)
	if err != nil {
		return fmt.Errorf("failed to parse pgx config: %w", err)
	}
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 3 * time.Minute
	c.pool, err = pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to connect pgx pool: %w", err)
	}
	if err = c.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	log.Print("[INFO][SQLDB] pgsql client initialized")
	return nil
}

func (c *Client) Close() error {
	if c.pool == nil {
		return nil
	}
	c.pool.Close()
	log.Println("[INFO][SQLDB] pgsql client closed")
	return nil
}

func (c *Client) GetConf() *sqldb.Conf { return c.Conf }

func (c *Client) GetDSN() string { return c.dsn }

func (c *Client) Ping(ctx context.Context) error {
	if c.pool == nil {
		return errors.New("pgsql client not initialized")
	}
	return c.pool.Ping(ctx)
}

func (c *Client) QueryRows(ctx context.Context, query string, args ...any) (sqldb.Rows, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (c *Client) QueryRow(ctx context.Context, query string, args ...any) sqldb.Row {
	return &Row{row: c.pool.QueryRow(ctx, query, args...)}
}

// mapErr translates pgx.ErrNoRows into sqldb.ErrNoRows.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sqldb.ErrNoRows
	}
	return err
}
