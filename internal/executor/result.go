// Package executor presents accepted statements to the data platform under
// the caller's own credential. Two executors exist: RemoteExecutor speaks
// HTTP to the warehouse gateway and is the production path; LocalExecutor
// runs against an embedded database for development. Both bound the result
// to a byte budget before it leaves the process.
package executor

import (
	"encoding/json"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

// boundRows copies rows into the result until the byte budget is spent,
// setting Truncated when anything was cut. Row cost is measured on the JSON
// encoding, which is what the caller ultimately receives.
func boundRows(result *domain.ExecutionResult, rows []map[string]interface{}, maxBytes int) {
	if maxBytes <= 0 {
		result.Rows = rows
		result.RowCount = len(rows)
		return
	}

	var spent int
	for _, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			// Unencodable values never fit a JSON response; drop the rest.
			result.Truncated = true
			break
		}
		if spent+len(encoded) > maxBytes {
			result.Truncated = true
			break
		}
		spent += len(encoded)
		result.Rows = append(result.Rows, row)
	}
	result.RowCount = len(result.Rows)
}
