// Package config loads the installer's optional Lua configuration file.
//
// # Overview
//
// The file (llob_install.lua by default, next to the executable) assigns a
// global "llob" table. Every field is optional; fields that are absent keep
// the built-in defaults returned by Default:
//
//	llob = {
//	  qq_exe_path  = [[D:\QQNT\QQ.exe]],
//	  work_dir     = [[D:\llob]],
//	  mirrors      = { "https://kkgithub.com", "https://github.com" },
//	  probe        = { path = "/owner/repo/releases/download/v1/file.dll", check = "pe" },
//	  race_timeout = 10,
//	  user_agent   = "Mozilla/5.0 ...",
//	  insecure_tls = true,
//	  log          = { level = "debug", file = [[D:\llob\install.log]] },
//	}
//
// # Security Model
//
// The file runs in a gopher-lua VM with the os, io, debug and module loading
// functions removed, as well as rawset, rawget and the garbage collector
// controls. A read-only "platform" table describes the host so a single file
// can carry per-machine conditionals:
//
//	mirrors = {
//	  platform.when(platform.is_windows, "https://kkgithub.com"),
//	  "https://github.com",
//	}
//
// Array entries that evaluate to nil are dropped.
//
// # Errors
//
// Lua errors and validation failures are returned as *ParseError. FormatError
// trims the Lua stack traceback unless verbose output is requested.
package config
