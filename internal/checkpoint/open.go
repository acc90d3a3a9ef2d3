package checkpoint

import (
	"fmt"
	"strings"
)

// Open picks a backend from a location string:
//
//	memory:                       in-process only
//	sqlite:/path/to/checkpoint.db sqlite database
//	postgres://... or postgresql://...
//	file:/path or a bare path     JSON file
func Open(location string) (Store, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, fmt.Errorf("checkpoint location is required")
	case location == "memory:" || location == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(location, "sqlite:"):
		return OpenSQL(DialectSQLite, strings.TrimPrefix(location, "sqlite:"))
	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		return OpenSQL(DialectPostgres, location)
	case strings.HasPrefix(location, "file:"):
		return NewFileStore(strings.TrimPrefix(location, "file:"))
	default:
		return NewFileStore(location)
	}
}
