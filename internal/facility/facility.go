// Package facility models the open-ended attribute bag describing a site.
package facility

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Attributes holds free-form facility facts keyed by attribute name.
// Values are whatever a JSON decoder produces: float64, string, bool, []any, nil.
type Attributes map[string]any

// Number returns the numeric value of key. Numeric strings ("1,200") are accepted.
func (a Attributes) Number(key string) (float64, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v)
}

// FirstNumber checks keys in order and returns the first present, non-zero value
// together with the key that supplied it.
func (a Attributes) FirstNumber(keys []string) (float64, string, bool) {
	for _, k := range keys {
		if n, ok := a.Number(k); ok && n != 0 {
			return n, k, true
		}
	}
	return 0, "", false
}

// String returns the trimmed string value of key.
func (a Attributes) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// FirstString checks keys in order and returns the first non-empty string value.
func (a Attributes) FirstString(keys []string) (string, string, bool) {
	for _, k := range keys {
		if s, ok := a.String(k); ok && s != "" {
			return s, k, true
		}
	}
	return "", "", false
}

// Truthy reports whether key is present and "on": a non-zero number, a non-empty
// string other than "none", a non-empty list, or literal true.
func (a Attributes) Truthy(key string) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.TrimSpace(t)
		return s != "" && !strings.EqualFold(s, "none")
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	}
	if n, ok := toFloat(v); ok {
		return n != 0
	}
	return false
}

// Keys returns the attribute names in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// toFloat rejects NaN and infinities, including the strings "NaN" and "Inf"
// that strconv accepts.
func toFloat(v any) (float64, bool) {
	f, ok := rawFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rawFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

var rangeNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseRangeKW parses free text such as "2–4 MW", "500-750 kW" or "1.5MW" and
// returns the midpoint in kW. Text without a unit is read as kW.
func ParseRangeKW(text string) (float64, bool) {
	s := strings.ToLower(strings.ReplaceAll(text, ",", ""))
	matches := rangeNumber.FindAllString(s, -1)
	if len(matches) == 0 {
		return 0, false
	}

	nums := make([]float64, 0, 2)
	for _, m := range matches[:min(len(matches), 2)] {
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		nums = append(nums, f)
	}

	mid := nums[0]
	if len(nums) == 2 {
		mid = (nums[0] + nums[1]) / 2
	}
	if strings.Contains(s, "mw") {
		mid *= 1000
	}
	return mid, mid > 0
}
