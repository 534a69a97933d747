package container

// Handle is the untyped view shared by keys and type descriptors. Handles are
// compared by identity, never by label.
type Handle interface {
	Label() string
}

// Key is an opaque identity token naming a slot in a Container. The type
// parameter fixes the type of the value stored under it; the label only shows
// up in diagnostics.
//
//	var DBKey = container.NewKey[*sql.DB]("db")
type Key[T any] struct {
	label string
}

// NewKey creates a new, globally unique key. Create keys once (usually as
// package-level variables) and share them by reference.
func NewKey[T any](label string) *Key[T] {
	return &Key[T]{label: label}
}

// Label returns the diagnostic label of the key.
func (k *Key[T]) Label() string { return k.label }

func (k *Key[T]) String() string { return k.label }
