package trino

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuoteIdentifier returns a double-quoted identifier with embedded quotes doubled.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral returns a single-quoted string literal with embedded quotes doubled.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return QuoteLiteral(x), nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float32:
		return formatFloat(float64(x)), nil
	case float64:
		return formatFloat(x), nil
	case time.Time:
		return fmt.Sprintf("TIMESTAMP '%s'", x.UTC().Format("2006-01-02 15:04:05.000000")), nil
	default:
		return "", fmt.Errorf("trino: cannot render %T as a literal", v)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
