package util

// Ptr returns a pointer to v. Used for optional config fields where nil
// means "not set" and the zero value is a valid setting.
func Ptr[T any](v T) *T { return &v }

// Deref returns *p, or the zero value when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
