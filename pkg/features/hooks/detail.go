package hooks

import (
	"fmt"
	"strconv"

	"github.com/vango-dev/retain/pkg/host"
)

// Detail gives typed access to the detail of a host event.
type Detail map[string]any

// DetailOf returns the detail of e.
func DetailOf(e host.Event) Detail {
	return Detail(e.Detail)
}

func (d Detail) String(key string) string {
	if v, ok := d[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func (d Detail) Int(key string) int {
	if v, ok := d[key]; ok {
		switch val := v.(type) {
		case int:
			return val
		case int64:
			return int(val)
		case float64:
			return int(val)
		case string:
			i, _ := strconv.Atoi(val)
			return i
		}
	}
	return 0
}

func (d Detail) Float(key string) float64 {
	if v, ok := d[key]; ok {
		switch val := v.(type) {
		case float64:
			return val
		case int:
			return float64(val)
		case int64:
			return float64(val)
		case string:
			f, _ := strconv.ParseFloat(val, 64)
			return f
		}
	}
	return 0.0
}

func (d Detail) Bool(key string) bool {
	if v, ok := d[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
		b, _ := strconv.ParseBool(fmt.Sprintf("%v", v))
		return b
	}
	return false
}
