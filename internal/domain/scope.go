package domain

// ScopeKind tags an aggregate as belonging to one store or to the sum of all
// matched stores.
type ScopeKind string

const (
	ScopeStore ScopeKind = "store"
	ScopeTotal ScopeKind = "total"
)

// TotalLabel is the display name used for the Total scope. It is only a
// label; identity is carried by Kind.
const TotalLabel = "ALL"

type Scope struct {
	Kind      ScopeKind `json:"scope"`
	StoreName string    `json:"store_name"`
}

func PerStore(name string) Scope {
	return Scope{Kind: ScopeStore, StoreName: name}
}

func Total() Scope {
	return Scope{Kind: ScopeTotal, StoreName: TotalLabel}
}

func (s Scope) IsTotal() bool {
	return s.Kind == ScopeTotal
}

// Aggregate pairs a scope with the metrics computed for it.
type Aggregate[T any] struct {
	Scope   Scope
	Metrics T
}
