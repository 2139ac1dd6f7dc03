package config

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/super1207/llobinstall/internal/host"
)

// injectPlatformTable creates a read-only platform table and injects it into
// the Lua state as a global. It must run before user code.
func injectPlatformTable(L *lua.LState, info *host.Info) {
	platformTable := L.NewTable()

	L.SetField(platformTable, "os", lua.LString(info.OS))
	L.SetField(platformTable, "arch", lua.LString(info.Arch))
	L.SetField(platformTable, "name", lua.LString(info.Platform))
	L.SetField(platformTable, "version", lua.LString(info.PlatformVersion))

	L.SetField(platformTable, "is_windows", lua.LBool(info.IsWindows()))
	L.SetField(platformTable, "is_amd64", lua.LBool(info.Arch == "amd64"))
	L.SetField(platformTable, "is_386", lua.LBool(info.Arch == "386"))
	L.SetField(platformTable, "is_arm64", lua.LBool(info.Arch == "arm64"))

	// when(condition, value) returns value if condition is true, nil otherwise
	L.SetField(platformTable, "when", L.NewFunction(func(L *lua.LState) int {
		if L.CheckBool(1) {
			L.Push(L.Get(2))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetGlobal(luaGlobalPlatform, makeReadOnly(L, platformTable))
}

// makeReadOnly returns a proxy that redirects reads to table and rejects writes.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only and cannot be modified")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
