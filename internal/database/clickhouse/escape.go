package clickhouse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuoteIdentifier backtick-quotes an identifier, doubling embedded
// backticks. All user-supplied table/column names pass through here before
// they are interpolated into SQL.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteLiteral single-quotes a string literal. ClickHouse prefers
// backslash escaping, so backslashes and quotes are escaped with backslashes.
func QuoteLiteral(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, "'", `\'`)
	return "'" + value + "'"
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
		return strconv.FormatFloat(float64(x), 'g', -1, 64), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case time.Time:
		return fmt.Sprintf("toDateTime(%d)", x.Unix()), nil
	default:
		return "", fmt.Errorf("clickhouse: cannot render %T as a literal", v)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
