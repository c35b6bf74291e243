package identity

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/taskmanager/apiserver/types"
)

// stringAttr returns the attribute as a trimmed string. Numbers are rendered
// without exponent so numeric ids survive JSON decoding.
func stringAttr(attrs map[string]any, key string) string {
	value, ok := attrs[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return ""
	}
}

// splitName splits a whitespace separated name into given, middle and
// family parts. A single token is the given name; with two tokens the second
// is the family name; anything past the third token joins the family name.
func splitName(raw string) *types.FullName {
	parts := strings.Fields(raw)
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return &types.FullName{Given: parts[0]}
	case 2:
		return &types.FullName{Given: parts[0], Family: parts[1]}
	default:
		return &types.FullName{
			Given:  parts[0],
			Middle: parts[1],
			Family: strings.Join(parts[2:], " "),
		}
	}
}

// localPart returns the part of the email before the @.
func localPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}
