package recorder

import "strings"

// Delimiter separates fields in a table row.
const Delimiter = ","

// EncodeField doubles embedded quotes and wraps the field in quotes when it
// contains the delimiter.
func EncodeField(f string) string {
	escaped := strings.ReplaceAll(f, `"`, `""`)
	if strings.Contains(f, Delimiter) {
		return `"` + escaped + `"`
	}
	return escaped
}

// EncodeRows renders rows one per line, each line newline-terminated.
func EncodeRows(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		for i, f := range row {
			if i > 0 {
				b.WriteString(Delimiter)
			}
			b.WriteString(EncodeField(f))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
