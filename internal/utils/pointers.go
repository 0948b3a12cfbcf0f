// Package utils holds helpers for the optional fields of the API wire types.
package utils

// Value dereferences v, returning the zero value for nil
func Value[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// NonZero returns a pointer to v, or nil when v is the zero value so that omitempty drops it
func NonZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}
