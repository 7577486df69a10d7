package ports

// DegradeFlag reports whether the downstream pipeline is known unavailable.
// Implementations must be safe for concurrent use without locking by the caller.
type DegradeFlag interface {
	Load() bool
}
