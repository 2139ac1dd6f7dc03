package config

import "time"

// DefaultFileName is the configuration file looked up next to the executable.
const DefaultFileName = "llob_install.lua"

// Lua schema field names and globals
const (
	luaGlobalLlob     = "llob"
	luaGlobalPlatform = "platform"
	luaFieldQQExePath = "qq_exe_path"
	luaFieldWorkDir   = "work_dir"
	luaFieldMirrors   = "mirrors"
	luaFieldProbe     = "probe"
	luaFieldPath      = "path"
	luaFieldCheck     = "check"
	luaFieldRaceTime  = "race_timeout"
	luaFieldUserAgent = "user_agent"
	luaFieldInsecure  = "insecure_tls"
	luaFieldLog       = "log"
	luaFieldLevel     = "level"
	luaFieldFile      = "file"
)

// Probe content checks
const (
	CheckPE      = "pe"
	CheckVersion = "version"
)

// Defaults
const (
	DefaultProbePath   = "/LiteLoaderQQNT/QQNTFileVerifyPatch/releases/download/DllHijack_1.0.8/dbghelp_x64.dll"
	DefaultRaceTimeout = 10 * time.Second
	DefaultLogLevel    = "info"

	// MaxRaceTimeout bounds race_timeout
	MaxRaceTimeout = 5 * time.Minute
	// MaxMirrorCount bounds the number of concurrent probes
	MaxMirrorCount = 32
	// MaxFileSize bounds the configuration file
	MaxFileSize = 1 << 20
)

// DefaultMirrors are the distribution endpoints raced when no mirrors are configured.
// The last one is the origin itself.
var DefaultMirrors = []string{
	"https://kkgithub.com",
	"https://dgithub.xyz",
	"https://gh.jiasu.in/https://github.com",
	"https://github.com",
}
