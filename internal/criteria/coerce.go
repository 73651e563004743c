package criteria

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseAmount coerces a condition pattern to a float64.
func parseAmount(pattern string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(pattern), 64)
	if err != nil {
		return 0, fmt.Errorf("not a numeric value: %q", pattern)
	}
	return value, nil
}

// parseDate validates a condition pattern as an ISO calendar date and
// returns its canonical YYYY-MM-DD form.
func parseDate(pattern string) (string, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(pattern))
	if err != nil {
		return "", fmt.Errorf("not an ISO date: %q", pattern)
	}
	return parsed.Format("2006-01-02"), nil
}

// rawRange is the decoded {min,max} payload of a between pattern.
type rawRange struct {
	Min any `json:"min"`
	Max any `json:"max"`
}

func decodeRange(pattern string) (rawRange, error) {
	var bounds rawRange
	dec := json.NewDecoder(strings.NewReader(pattern))
	dec.UseNumber()
	if err := dec.Decode(&bounds); err != nil {
		return rawRange{}, fmt.Errorf("not a {min,max} object: %q", pattern)
	}
	if bounds.Min == nil || bounds.Max == nil {
		return rawRange{}, fmt.Errorf("range is missing min or max: %q", pattern)
	}
	return bounds, nil
}

// coerceFloat accepts the value shapes a {min,max} bound may decode to:
// a JSON number or a numeric string.
func coerceFloat(value any) (float64, error) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a numeric bound: %v", value)
		}
		return f, nil
	case float64:
		return v, nil
	case string:
		return parseAmount(v)
	}
	return 0, fmt.Errorf("not a numeric bound: %v", value)
}

// parseAmountRange parses a between pattern for the amount field.
// Bounds are inclusive; min must not exceed max.
func parseAmountRange(pattern string) (low, high float64, err error) {
	bounds, err := decodeRange(pattern)
	if err != nil {
		return 0, 0, err
	}
	if low, err = coerceFloat(bounds.Min); err != nil {
		return 0, 0, err
	}
	if high, err = coerceFloat(bounds.Max); err != nil {
		return 0, 0, err
	}
	if low > high {
		return 0, 0, fmt.Errorf("range min %v exceeds max %v", low, high)
	}
	return low, high, nil
}

// parseDateRange parses a between pattern for the date field. Bounds
// are inclusive ISO dates.
func parseDateRange(pattern string) (low, high string, err error) {
	bounds, err := decodeRange(pattern)
	if err != nil {
		return "", "", err
	}
	lowStr, ok := bounds.Min.(string)
	if !ok {
		return "", "", fmt.Errorf("range min is not a date string: %v", bounds.Min)
	}
	highStr, ok := bounds.Max.(string)
	if !ok {
		return "", "", fmt.Errorf("range max is not a date string: %v", bounds.Max)
	}
	if low, err = parseDate(lowStr); err != nil {
		return "", "", err
	}
	if high, err = parseDate(highStr); err != nil {
		return "", "", err
	}
	if low > high {
		return "", "", fmt.Errorf("range min %s is after max %s", low, high)
	}
	return low, high, nil
}
