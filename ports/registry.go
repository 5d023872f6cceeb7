package ports

// AdapterRegistry exposes the registered test adapters in registration order
type AdapterRegistry interface {
	Adapters() []TestAdapter
	Names() []string
	Len() int
}
