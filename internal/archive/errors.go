package archive

import "fmt"

// ErrorKind classifies extraction failures.
type ErrorKind int

const (
	// KindCorrupt means the archive could not be opened or an entry could not be decoded.
	KindCorrupt ErrorKind = iota
	// KindIo means writing to the destination tree failed.
	KindIo
)

// String returns the string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindCorrupt:
		return "corrupt"
	case KindIo:
		return "io"
	default:
		return "unknown"
	}
}

// Error is returned by Extract. Skipped entries never produce an Error.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract (%s) %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
