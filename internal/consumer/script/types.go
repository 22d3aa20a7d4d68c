package script

import (
	"encoding/json"
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// toGo converts a Lua value to plain Go values: tables with only numeric keys become
// slices, other tables maps.
func toGo(value lua.LValue) any {
	switch value.Type() {
	case lua.LTString:
		return value.String()
	case lua.LTNumber:
		return float64(value.(lua.LNumber))
	case lua.LTBool:
		return bool(value.(lua.LBool))
	case lua.LTTable:
		tbl := value.(*lua.LTable)

		var arr []any
		isArray := true
		tbl.ForEach(func(key, val lua.LValue) {
			if key.Type() != lua.LTNumber {
				isArray = false
			}
			arr = append(arr, toGo(val))
		})
		if isArray {
			return arr
		}

		result := make(map[string]any)
		tbl.ForEach(func(key, val lua.LValue) {
			result[key.String()] = toGo(val)
		})
		return result

	case lua.LTNil:
		return nil
	default:
		return value.String()
	}
}

// toLua converts a decoded stream payload to a Lua value. json.Number becomes a Lua
// number; arrays are 1-indexed.
func toLua(L *lua.LState, val any) lua.LValue {
	switch v := val.(type) {
	case nil:
		return lua.LNil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return lua.LString(v.String())
		}
		return lua.LNumber(f)
	case json.RawMessage:
		return lua.LString(string(v))
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())

	case reflect.Slice, reflect.Array:
		tbl := L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			tbl.RawSetInt(i+1, toLua(L, rv.Index(i).Interface()))
		}
		return tbl

	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			tbl := L.NewTable()
			iter := rv.MapRange()
			for iter.Next() {
				tbl.RawSetString(iter.Key().String(), toLua(L, iter.Value().Interface()))
			}
			return tbl
		}
	}
	return lua.LString(fmt.Sprintf("%v", val))
}
