package acorn

// Lifetime controls how often a registration is constructed.
type Lifetime int

const (
	// Singleton is the default lifetime for explicit registrations. The first
	// successful construction is cached by the owning container and returned
	// by every later [Container.Resolve] that is not overridden.
	Singleton Lifetime = iota

	// Transient means a fresh construction on every [Container.Resolve] call.
	// Autowired types without a registration are always transient.
	Transient
)

// String returns the human-readable name of the lifetime.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}
