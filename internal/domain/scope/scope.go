package scope

// Kind distinguishes import scopes from user groups.
type Kind string

// Scope kinds.
const (
	KindImport Kind = "import"
	KindGroup  Kind = "group"
)

// Scope is the membership boundary a query is restricted to.
type Scope struct {
	ID           string
	Kind         Kind
	SuccessCount int
	Known        bool
}

// Empty is the safe default returned for ids the registry does not know.
func Empty(id string) Scope {
	return Scope{ID: id}
}
