package host

import (
	"debug/pe"
	"fmt"
)

// Arch is the bitness of the client executable.
type Arch int

const (
	// ArchUnknown is returned alongside errors.
	ArchUnknown Arch = iota
	// Arch32 is a 32-bit (PE32) executable.
	Arch32
	// Arch64 is a 64-bit (PE32+) executable.
	Arch64
)

// String returns the string representation of the architecture
func (a Arch) String() string {
	switch a {
	case Arch32:
		return "32-bit"
	case Arch64:
		return "64-bit"
	default:
		return "unknown"
	}
}

// DetectArch reads the PE header of exePath and reports its bitness.
// The optional header magic decides when present; otherwise the COFF
// machine type does.
func DetectArch(exePath string) (Arch, error) {
	f, err := pe.Open(exePath)
	if err != nil {
		return ArchUnknown, fmt.Errorf("parse PE header of %s: %w", exePath, err)
	}
	defer f.Close()

	switch f.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		return Arch64, nil
	case *pe.OptionalHeader32:
		return Arch32, nil
	}

	switch f.FileHeader.Machine {
	case pe.IMAGE_FILE_MACHINE_AMD64, pe.IMAGE_FILE_MACHINE_ARM64:
		return Arch64, nil
	case pe.IMAGE_FILE_MACHINE_I386, pe.IMAGE_FILE_MACHINE_ARMNT:
		return Arch32, nil
	default:
		return ArchUnknown, fmt.Errorf("unsupported PE machine type %#x in %s", f.FileHeader.Machine, exePath)
	}
}
