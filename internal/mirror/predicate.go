package mirror

import (
	"bytes"
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Predicate checks a probe response body. It must be safe for concurrent use.
type Predicate func(body []byte) bool

// PEMagic is the magic number of Windows PE executables and DLLs.
var PEMagic = []byte("MZ")

// MagicPrefix accepts bodies starting with magic.
func MagicPrefix(magic []byte) Predicate {
	m := append([]byte(nil), magic...)
	return func(body []byte) bool {
		return len(m) > 0 && bytes.HasPrefix(body, m)
	}
}

// VersionBody accepts bodies that consist of a single version string,
// such as "v3.31.4" or "1.0.8".
func VersionBody() Predicate {
	return func(body []byte) bool {
		s := strings.TrimSpace(string(body))
		if s == "" || strings.ContainsAny(s, " \t\r\n") {
			return false
		}
		_, err := goversion.NewVersion(s)
		return err == nil
	}
}

// PredicateByName resolves a configured probe check name.
func PredicateByName(name string) (Predicate, error) {
	switch name {
	case "", "pe":
		return MagicPrefix(PEMagic), nil
	case "version":
		return VersionBody(), nil
	default:
		return nil, fmt.Errorf("unknown probe check %q (supported: pe, version)", name)
	}
}
