package server

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/harshithgowdakt/heapdb/internal/types"
)

// OutputFormat specifies the result format.
type OutputFormat string

const (
	FormatTabSeparated OutputFormat = "TabSeparated"
	FormatJSON         OutputFormat = "JSON"
	FormatCSV          OutputFormat = "CSV"
)

// ParseFormat parses a format string (case-insensitive).
func ParseFormat(s string) OutputFormat {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "csv":
		return FormatCSV
	default:
		return FormatTabSeparated
	}
}

// FormatRows writes a result set in the specified format.
func FormatRows(w io.Writer, colNames []string, rows [][]types.Value, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return formatJSON(w, colNames, rows)
	case FormatCSV:
		return formatCSV(w, colNames, rows)
	default:
		return formatTabSeparated(w, colNames, rows)
	}
}

func formatTabSeparated(w io.Writer, colNames []string, rows [][]types.Value) error {
	fmt.Fprintln(w, strings.Join(colNames, "\t"))
	for _, row := range rows {
		var vals []string
		for _, v := range row {
			vals = append(vals, formatValue(v))
		}
		fmt.Fprintln(w, strings.Join(vals, "\t"))
	}
	return nil
}

func formatCSV(w io.Writer, colNames []string, rows [][]types.Value) error {
	fmt.Fprintln(w, strings.Join(quoteCSV(colNames), ","))
	for _, row := range rows {
		var vals []string
		for _, v := range row {
			s := formatValue(v)
			if _, isStr := v.(string); isStr {
				s = `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
			}
			vals = append(vals, s)
		}
		fmt.Fprintln(w, strings.Join(vals, ","))
	}
	return nil
}

func formatJSON(w io.Writer, colNames []string, rows [][]types.Value) error {
	type resultJSON struct {
		Meta []map[string]string      `json:"meta"`
		Data []map[string]interface{} `json:"data"`
		Rows int                      `json:"rows"`
	}

	result := resultJSON{}
	for _, name := range colNames {
		result.Meta = append(result.Meta, map[string]string{"name": name})
	}
	for _, row := range rows {
		rowMap := make(map[string]interface{})
		for c, name := range colNames {
			if c < len(row) {
				rowMap[name] = row[c]
			}
		}
		result.Data = append(result.Data, rowMap)
	}
	result.Rows = len(rows)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func formatValue(v types.Value) string {
	if v == nil {
		return "NULL"
	}
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%g", f)
	}
	return fmt.Sprintf("%v", v)
}

func quoteCSV(vals []string) []string {
	result := make([]string, len(vals))
	for i, v := range vals {
		if strings.ContainsAny(v, ",\"\n") {
			result[i] = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
		} else {
			result[i] = v
		}
	}
	return result
}
