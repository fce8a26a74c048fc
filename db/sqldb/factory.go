package sqldb

import (
	"fmt"
	"sort"
)

// ClientFactory is a callback that constructs a Client from Conf.
// Driver packages register one from init.
type ClientFactory func(conf *Conf) (Client, error)

var registry = map[string]ClientFactory{}

func RegisterFactory(dbType string, factory ClientFactory) {
	registry[dbType] = factory
}

// New builds a client for conf.Type. The client is not initialized.
func New(conf *Conf) (Client, error) {
	factory, ok := registry[conf.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %q (registered: %v)", conf.Type, Types())
	}
	return factory(conf)
}

func Types() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
