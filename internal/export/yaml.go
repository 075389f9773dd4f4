package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// frontMatter renders a map as deterministic YAML: keys lexicographically
// sorted, nested maps indented by two spaces, lists as dash items. Output is
// byte-stable for equal input.
func frontMatter(values map[string]interface{}) string {
	var b strings.Builder
	writeMap(&b, values, 0)
	return b.String()
}

func writeMap(b *strings.Builder, values map[string]interface{}, indent int) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pad := strings.Repeat(" ", indent)
	for _, k := range keys {
		switch v := values[k].(type) {
		case map[string]interface{}:
			if len(v) == 0 {
				fmt.Fprintf(b, "%s%s: {}\n", pad, k)
				continue
			}
			fmt.Fprintf(b, "%s%s:\n", pad, k)
			writeMap(b, v, indent+2)
		case []interface{}:
			if len(v) == 0 {
				fmt.Fprintf(b, "%s%s: []\n", pad, k)
				continue
			}
			fmt.Fprintf(b, "%s%s:\n", pad, k)
			for _, item := range v {
				fmt.Fprintf(b, "%s- %s\n", pad, scalar(item))
			}
		default:
			fmt.Fprintf(b, "%s%s: %s\n", pad, k, scalar(v))
		}
	}
}

// scalar renders a leaf value. Strings are quoted when they carry YAML
// structure characters or edge whitespace; empty strings emit ''.
func scalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case string:
		return scalarString(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return scalarString(fmt.Sprintf("%v", t))
	}
}

func scalarString(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, ":#[]{}\n\r") || s != strings.TrimSpace(s) {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return s
}
