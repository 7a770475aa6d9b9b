package recipe

import (
	"fmt"
	"runtime"
	"slices"
)

// OS is a target operating system as recipes name it.
type OS string

const (
	Linux   OS = "linux"
	Darwin  OS = "darwin"
	Windows OS = "windows"
)

// Profile is the platform description threaded through every component.
// Platform-dependent decisions are made against a Profile, never against
// runtime.GOOS directly.
type Profile struct {
	OS   OS
	Arch string

	// NeedsBuildScripting reports whether vendored build scripts need an
	// external scripting toolchain (Perl on Windows).
	NeedsBuildScripting bool

	// VersionedSharedObjects reports whether shared libraries carry
	// versioned names such as libfoo.so.2.1.0.
	VersionedSharedObjects bool
}

// ProfileFor returns the profile of the given os/arch pair.
func ProfileFor(os OS, arch string) Profile {
	return Profile{
		OS:                     os,
		Arch:                   arch,
		NeedsBuildScripting:    os == Windows,
		VersionedSharedObjects: os == Linux,
	}
}

// HostProfile returns the profile of the running host.
func HostProfile() Profile {
	return ProfileFor(OS(runtime.GOOS), runtime.GOARCH)
}

// Applies reports whether a declaration restricted to platforms is active on
// p. An empty list means every platform.
func (p Profile) Applies(platforms []OS) bool {
	return len(platforms) == 0 || slices.Contains(platforms, p.OS)
}

func (p Profile) String() string {
	return string(p.OS) + "-" + p.Arch
}

// BuildType selects the optimization profile of a native build.
type BuildType string

const (
	Debug   BuildType = "Debug"
	Release BuildType = "Release"
)

// ParseBuildType parses "Debug" or "Release", case-sensitively.
func ParseBuildType(s string) (BuildType, error) {
	switch BuildType(s) {
	case Debug, Release:
		return BuildType(s), nil
	}
	return "", fmt.Errorf("invalid build type %q: want %s or %s", s, Debug, Release)
}

// BuildConfig is the build configuration requested for a build invocation.
type BuildConfig struct {
	BuildType BuildType

	// MultiConfig reports whether the toolchain selects the build type per
	// build invocation rather than at configure time.
	MultiConfig bool
}
