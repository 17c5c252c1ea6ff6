package db

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

// schemaFS holds the DDL for the patients and diagnoses tables. Operators
// apply it with their own tooling; the integration tests load it into a
// throwaway database.
//
//go:embed schema/*.sql
var schemaFS embed.FS

// SchemaStatements returns the schema files in filename order.
func SchemaStatements() ([]string, error) {
	names, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list schema files: %w", err)
	}
	sort.Strings(names)

	stmts := make([]string, 0, len(names))
	for _, name := range names {
		b, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read schema file %s: %w", name, err)
		}
		stmts = append(stmts, string(b))
	}
	return stmts, nil
}
