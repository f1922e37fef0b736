package toolgate

import (
	"fmt"

	"github.com/corescaffold/cogkernel/internal/store"
)

// LoadSchemaTable reads the static per-tool argument schema table. A
// missing file yields an empty table: validation then only checks
// against the Tool's own ToolSchema from internal/tools, never blocking
// on an absent static override.
func LoadSchemaTable(path string) (SchemaTable, error) {
	table := make(SchemaTable)
	if err := store.ReadJSON(path, &table); err != nil {
		return nil, fmt.Errorf("load tool schema table %s: %w", path, err)
	}
	return table, nil
}

// LoadAdviceTable reads the static (tool_name, error_kind) -> advice
// table, keyed "tool_name|error_kind" (anyKey for wildcards).
func LoadAdviceTable(path string) (AdviceTable, error) {
	table := make(AdviceTable)
	if err := store.ReadJSON(path, &table); err != nil {
		return nil, fmt.Errorf("load tool advice table %s: %w", path, err)
	}
	return table, nil
}
