package widget

import "errors"

// Sentinel error kinds shared by all widget engines. Callers classify
// failures with errors.Is; engines never panic on well-formed input.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
)

// Widget types addressable through the API. A target key is always
// "<type>:<target>".
const (
	TypeCounter = "counter"
	TypeLike    = "like"
	TypeRanking = "ranking"
	TypeBBS     = "bbs"
)

// Types lists all known widget types in stable order.
var Types = []string{TypeCounter, TypeLike, TypeRanking, TypeBBS}

// ValidType reports whether t names a known widget type.
func ValidType(t string) bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}
