package templates

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/zeptools/gw-typst/db/sqldb"
	"github.com/zeptools/gw-typst/nullable"
)

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)

const DefaultTable = "typst_templates"

// SQLStore reads template bodies from a table with `name` and `body`
// columns. A NULL body is unreadable.
type SQLStore struct {
	client      sqldb.Client
	lookupQuery string
	listQuery   string
}

func NewSQLStore(client sqldb.Client, table string) (*SQLStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !sqldb.IdentifierRegexp.MatchString(table) {
		return nil, fmt.Errorf("templates: invalid table name %q", table)
	}
	prefix := sqldb.PlaceholderPrefixForDBType[client.GetConf().Type]
	return &SQLStore{
		client:      client,
		lookupQuery: sqldb.ReplaceStaticPlaceholders("SELECT body FROM "+table+" WHERE name = ?", prefix),
		listQuery:   "SELECT name FROM " + table + " ORDER BY name",
	}, nil
}

func (s *SQLStore) Lookup(ctx context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	var body nullable.String
	err := s.client.QueryRow(ctx, s.lookupQuery, name).Scan(&body)
	if errors.Is(err, sqldb.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnreadable, name, err)
	}
	if body.IsNil() {
		return "", fmt.Errorf("%w: %s has a NULL body", ErrUnreadable, name)
	}
	if !utf8.ValidString(body.String) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnreadable, name)
	}
	return body.String, nil
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.client.QueryRows(ctx, s.listQuery)
	if err != nil {
		return nil, fmt.Errorf("templates: list: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("templates: list: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("templates: list: %w", err)
	}
	return names, nil
}
