package settings

import (
	"fmt"
	"strings"
)

// TypeError reports a setter input outside the accepted union of types.
type TypeError struct {
	Setter string
	Want   string
	Got    interface{}
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: argument must be %s, got %T", e.Setter, e.Want, e.Got)
}

// HostlistFromValue classifies a dynamically typed host list. A single string
// is trimmed and treated as one host; a list must hold only strings.
func HostlistFromValue(setter string, v interface{}) ([]string, error) {
	switch hosts := v.(type) {
	case string:
		return []string{strings.TrimSpace(hosts)}, nil
	case []string:
		return append([]string(nil), hosts...), nil
	case []interface{}:
		ret := make([]string, 0, len(hosts))
		for _, h := range hosts {
			s, ok := h.(string)
			if !ok {
				return nil, &TypeError{Setter: setter, Want: "a list of strings", Got: h}
			}
			ret = append(ret, s)
		}
		return ret, nil
	default:
		return nil, &TypeError{Setter: setter, Want: "a string or a list of strings", Got: v}
	}
}

// QuoteHostlist joins hosts with commas inside literal double quotes, the
// form bsub -m expects.
func QuoteHostlist(hosts []string) string {
	return `"` + strings.Join(hosts, ",") + `"`
}
