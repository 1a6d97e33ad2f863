package utils

// ToStringSlice keeps the string elements of a decoded JSON array, e.g. a roles claim.
func ToStringSlice(values []any) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
