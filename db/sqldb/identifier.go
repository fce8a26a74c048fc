package sqldb

import "regexp"

// IdentifierRegexp accepts plain and schema-qualified table or column names.
var IdentifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
