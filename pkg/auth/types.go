// Package auth gates catalog mutations behind an operator session: a
// passphrase login issues a signed token carrying capabilities, and the
// recipe repository checks those capabilities before every write.
package auth

// Principal is the interface for any entity making a request.
type Principal interface {
	GetID() string
	GetCapabilities() []string
	// HasPermission reports whether the principal holds capability perm.
	HasPermission(perm string) bool
}

// Wildcard grants every capability.
const Wildcard = "*"

// BasePrincipal is a simple implementation of Principal.
type BasePrincipal struct {
	ID           string
	Capabilities []string
}

func (b *BasePrincipal) GetID() string {
	return b.ID
}

func (b *BasePrincipal) GetCapabilities() []string {
	return b.Capabilities
}

func (b *BasePrincipal) HasPermission(perm string) bool {
	for _, c := range b.Capabilities {
		if c == perm || c == Wildcard {
			return true
		}
	}
	return false
}
