package installer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotElevated means the installer lacks administrator rights.
	ErrNotElevated = errors.New("installer is not running with administrator rights")
	// ErrPriorLoader means a manually installed plugin loader was detected.
	ErrPriorLoader = errors.New("a manually installed plugin loader was detected")
	// ErrClientRunning means the chat client must be closed first.
	ErrClientRunning = errors.New("chat client is running, close it first")
	// ErrMissingTag means release metadata carried no tag_name.
	ErrMissingTag = errors.New("release metadata has no tag_name")
	// ErrInvalidTag means tag_name cannot be interpolated into a URL path or file name.
	ErrInvalidTag = errors.New("release tag is not a safe path segment")
	// ErrUnsafeLoaderPath means the loader directory cannot be embedded in a String.raw literal.
	ErrUnsafeLoaderPath = errors.New("loader directory cannot be embedded in the launcher script")
)

// ErrorKind classifies orchestration failures.
type ErrorKind int

const (
	// KindPreconditionFailed means the host is not in a state the install can start from.
	KindPreconditionFailed ErrorKind = iota
	// KindStepFailed means an install step failed after the preconditions held.
	KindStepFailed
)

// String returns the string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindPreconditionFailed:
		return "precondition failed"
	case KindStepFailed:
		return "step failed"
	default:
		return "unknown"
	}
}

// Error is returned by Installer.Run. Every failure is terminal for the run.
type Error struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StageOf returns the stage an installer error occurred at.
func StageOf(err error) (Stage, bool) {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Stage, true
	}
	return 0, false
}
