package firmware

// Lua scripts that define scanner signatures

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"log/slog"

	lua "github.com/yuin/gopher-lua"
)

func pullInt(table *lua.LTable, key string, done func(int)) bool {
	ttemp := table.RawGetString(key)
	tnum, ok := ttemp.(lua.LNumber)
	if ok {
		done(int(tnum))
	}
	return ok
}

// Function for lua scripts that lets you parse hex
func luaHex(L *lua.LState) int {
	hexstring := L.CheckString(1)
	raw, err := ParseHexBytes(hexstring)
	if err != nil {
		L.RaiseError("Error decoding hex in lua script: %s", err)
		return 0
	}
	L.Push(lua.LString(string(raw)))
	return 1
}

// Function for lua scripts that lets you parse base64
func luaBase64(L *lua.LState) int {
	b64string := L.CheckString(1)
	raw, err := base64.StdEncoding.DecodeString(b64string)
	if err != nil {
		L.RaiseError("Error decoding base64 in lua script: %s", err)
		return 0
	}
	L.Push(lua.LString(string(raw)))
	return 1
}

// fill(byte, count): the same byte repeated
func luaFill(L *lua.LState) int {
	b := L.CheckInt(1)
	count := L.CheckInt(2)
	if b < 0 || b > 255 {
		L.RaiseError("Fill byte %d out of range", b)
		return 0
	}
	if count < 0 {
		L.RaiseError("Negative fill count %d", count)
		return 0
	}
	L.Push(lua.LString(string(bytes.Repeat([]byte{byte(b)}, count))))
	return 1
}

// Run a lua script that calls signature(name, bytes[, {lookback=, repeats=}])
// for everything the scanner should look for. Signatures come back in the
// order they were defined; each one is validated as it is added.
func RunLuaSignatureScript(script string) ([]Signature, error) {
	result := make([]Signature, 0)

	L := lua.NewState()
	defer L.Close()

	L.SetGlobal("hex", L.NewFunction(luaHex))
	L.SetGlobal("base64", L.NewFunction(luaBase64))
	L.SetGlobal("fill", L.NewFunction(luaFill))
	L.SetGlobal("signature", L.NewFunction(func(L *lua.LState) int {
		sig := Signature{
			Name:    L.CheckString(1),
			Pattern: hex.EncodeToString([]byte(L.CheckString(2))),
		}
		if options := L.OptTable(3, nil); options != nil {
			pullInt(options, "lookback", func(v int) { sig.Lookback = v })
			pullInt(options, "repeats", func(v int) { sig.Repeats = v })
		}
		if _, err := sig.Compile(); err != nil {
			L.RaiseError("Bad signature: %s", err)
			return 0
		}
		slog.Debug("signature from lua script", "name", sig.Name, "pattern", sig.Pattern)
		result = append(result, sig)
		return 0
	}))

	if err := L.DoString(script); err != nil {
		return nil, &ConfigError{Field: "lua script", Err: err}
	}
	return result, nil
}
