package host

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// Info describes the machine the installer runs on.
type Info struct {
	OS              string // runtime.GOOS
	Arch            string // runtime.GOARCH
	Platform        string // e.g. "microsoft windows 11 pro", "ubuntu"
	PlatformVersion string // e.g. "10.0.22631 build 22631", "22.04"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// Detector is the interface for host detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// RealDetector implements Detector using gopsutil.
type RealDetector struct{}

// NewDetector creates a new host detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect returns OS and architecture from the Go runtime and platform
// details from gopsutil. Platform detection failures are not fatal; the
// platform fields are left empty.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	platform, _, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("host detection cancelled: %w", ctx.Err())
		}
		return info, nil
	}

	info.Platform = strings.ToLower(strings.TrimSpace(platform))
	info.PlatformVersion = strings.TrimSpace(version)
	return info, nil
}
