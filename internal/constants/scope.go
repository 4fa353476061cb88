package constants

// Scope selects which data directory runs are stored in.
type Scope string

const (
	// ScopeLocal stores runs under the current project's .ash directory
	ScopeLocal Scope = "local"

	// ScopeGlobal stores runs under the user's ~/.ash directory
	ScopeGlobal Scope = "global"
)

// Valid returns true if the scope is a recognized value.
func (s Scope) Valid() bool {
	switch s {
	case ScopeLocal, ScopeGlobal:
		return true
	}
	return false
}

// String returns the string representation of the scope.
func (s Scope) String() string {
	return string(s)
}
