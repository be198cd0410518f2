package router

import (
	"fmt"
	"time"
)

// maxDimensions is the hard cap on any requested image edge.
const maxDimensions = 4096

func stringArg(args map[string]any, name string) (string, error) {
	v, present := args[name]
	if !present {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", ErrBadArgument, name)
	}
	return s, nil
}

func optStringArg(args map[string]any, name, def string) (string, error) {
	v, present := args[name]
	if !present || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrBadArgument, name)
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

func optIntArg(args map[string]any, name string, def, min, max int) (int, error) {
	v, present := args[name]
	if !present || v == nil {
		return def, nil
	}
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("%w: %s must be an integer", ErrBadArgument, name)
		}
		n = int(t)
	default:
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadArgument, name)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", ErrBadArgument, name, min, max)
	}
	return n, nil
}

func optFloatArg(args map[string]any, name string, def float64) (float64, error) {
	v, present := args[name]
	if !present || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	}
	return 0, fmt.Errorf("%w: %s must be a number", ErrBadArgument, name)
}

func optBoolArg(args map[string]any, name string, def bool) (bool, error) {
	v, present := args[name]
	if !present || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrBadArgument, name)
	}
	return b, nil
}

// dateArg validates an ISO date argument.
func dateArg(args map[string]any, name string) (string, error) {
	s, err := stringArg(args, name)
	if err != nil {
		return "", err
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", fmt.Errorf("%w: %s must be an ISO date (YYYY-MM-DD)", ErrBadArgument, name)
	}
	return s, nil
}

func optStringSliceArg(args map[string]any, name string) ([]string, error) {
	v, present := args[name]
	if !present || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, el := range t {
			s, ok := el.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a list of strings", ErrBadArgument, name)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s must be a list of strings", ErrBadArgument, name)
}

func optFloatSliceArg(args map[string]any, name string) ([]float64, error) {
	v, present := args[name]
	if !present || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case []float64:
		return t, nil
	case float64:
		return []float64{t}, nil
	case int:
		return []float64{float64(t)}, nil
	case []any:
		out := make([]float64, 0, len(t))
		for _, el := range t {
			switch n := el.(type) {
			case float64:
				out = append(out, n)
			case int:
				out = append(out, float64(n))
			default:
				return nil, fmt.Errorf("%w: %s must be a list of numbers", ErrBadArgument, name)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s must be a number or list of numbers", ErrBadArgument, name)
}
