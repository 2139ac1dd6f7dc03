package config

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestSandboxLuaVM(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
		errMsg  string
	}{
		{name: "string operations allowed", code: `x = string.format("%s/%s", "https://github.com", "x")`},
		{name: "table operations allowed", code: `t = {"a"}; table.insert(t, "b"); x = table.concat(t, ",")`},
		{name: "math operations allowed", code: `x = math.max(5, 10)`},
		{name: "basic functions allowed", code: `x = type("a"); y = tostring(1); z = tonumber("2")`},
		{name: "ipairs allowed", code: `for i, v in ipairs({"a", "b"}) do end`},

		{name: "os.execute blocked", code: `os.execute("del QQ.exe")`, wantErr: true, errMsg: "attempt to index"},
		{name: "os.getenv blocked", code: `x = os.getenv("USERPROFILE")`, wantErr: true, errMsg: "attempt to index"},
		{name: "io.open blocked", code: `f = io.open("C:/Windows/win.ini")`, wantErr: true, errMsg: "attempt to index"},
		{name: "require blocked", code: `x = require("socket")`, wantErr: true, errMsg: "attempt to call"},
		{name: "dofile blocked", code: `dofile("evil.lua")`, wantErr: true, errMsg: "attempt to call"},
		{name: "loadstring blocked", code: `f = loadstring("return 1")`, wantErr: true, errMsg: "attempt to call"},
		{name: "debug blocked", code: `debug.getinfo(1)`, wantErr: true, errMsg: "attempt to index"},
		{name: "rawset blocked", code: `rawset({}, "a", 1)`, wantErr: true, errMsg: "attempt to call"},
		{name: "collectgarbage blocked", code: `collectgarbage()`, wantErr: true, errMsg: "attempt to call"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newSandboxedVM()
			defer L.Close()

			err := L.DoString(tt.code)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DoString(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("DoString(%q) error = %v, want substring %q", tt.code, err, tt.errMsg)
			}
		})
	}
}

func TestNewSandboxedVM(t *testing.T) {
	L := newSandboxedVM()
	defer L.Close()

	if os := L.GetGlobal("os"); os.Type() != lua.LTNil {
		t.Errorf("os = %v, want nil", os.Type())
	}
	if str := L.GetGlobal("string"); str.Type() != lua.LTTable {
		t.Errorf("string = %v, want table", str.Type())
	}
}
