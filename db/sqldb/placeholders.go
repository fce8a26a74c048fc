package sqldb

import (
	"strconv"
	"strings"
)

var PlaceholderPrefixForDBType = map[string]byte{
	"mysql": '?',
	"pgsql": '$',
}

// ReplaceStaticPlaceholders numbers the `?` placeholders of sql for
// drivers that use ordinal ones, e.g. `$1, $2` for pgsql.
func ReplaceStaticPlaceholders(sql string, prefix byte) string {
	if prefix == '?' || prefix == 0 {
		return sql
	}
	var builder strings.Builder
	builder.Grow(len(sql) + 8)
	cnt := 1
	for i := 0; i < len(sql); i++ {
		if sql[i] != '?' {
			builder.WriteByte(sql[i])
			continue
		}
		builder.WriteByte(prefix)
		builder.WriteString(strconv.Itoa(cnt))
		cnt++
	}
	return builder.String()
}
