package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql" // side-effect
	"github.com/zeptools/gw-typst/db/sqldb"
)

type Client struct {
	Conf *sqldb.Conf

	// db fields are implementation details, not exported
	db  *sql.DB
	dsn string
}

// Ensure mysql.Client implements sqldb.Client interface
var _ sqldb.Client = (*Client)(nil)

func init() {
	sqldb.RegisterFactory("mysql", func(conf *sqldb.Conf) (sqldb.Client, error) {
		return &Client{Conf: conf}, nil
	})
}

func (c *Client) Init() error {
	var err error
	if c.Conf.DSN != "" {
		c.dsn = c.Conf.DSN
	} else {
		c.dsn = fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=%s&sql_mode=ANSI_QUOTES",
			c.Conf.User,
			c.Conf.PW,
			c.Conf.Host,
			c.Conf.Port,
			c.Conf.DB,
			c.Conf.TZ,
		)
	}
	if c.db, err = sql.Open("mysql", c.dsn); err != nil {
		return err
	}
	c.db.SetConnMaxLifetime(time.Minute * 3)
	c.db.SetMaxOpenConns(4)
	c.db.SetMaxIdleConns(4)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = c.Ping(ctx); err != nil {
		return fmt.Errorf("mysql ping failed: %w", err)
	}
	log.Println("[INFO][SQLDB] mysql client initialized")
	return nil
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return err
	}
	log.Println("[INFO][SQLDB] mysql client closed")
	return nil
}

func (c *Client) GetConf() *sqldb.Conf { return c.Conf }

func (c *Client) GetDSN() string { return c.dsn }

func (c *Client) Ping(ctx context.Context) error {
	if c.db == nil {
		return errors.New("mysql client not initialized")
	}
	return c.db.PingContext(ctx)
}

func (c *Client) QueryRows(ctx context.Context, query string, args ...any) (sqldb.Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (c *Client) QueryRow(ctx context.Context, query string, args ...any) sqldb.Row {
	return &Row{row: c.db.QueryRowContext(ctx, query, args...)}
}
