// The script package loads extra conformance cases from Lua. A script
// assigns a global table named cases; each entry describes one case:
//
//	cases = {
//	  { name = "addi", asm = "addi r3,r4,1", gpr = { [4] = 41 },
//	    expect = { kind = "int", reg = 3, value = 42 } },
//	  { name = "pair", asm = { "li r4,7", "addi r3,r4,1" },
//	    expect = { kind = "int", reg = 3, value = 8 } },
//	}
//
// Numbers may be Lua numbers or strings. Lua numbers must be integers
// in [0, 2^64); strings are parsed with a base prefix so 64-bit
// patterns like "0x7ff8000000000001" survive, and "-1" is the two's
// complement pattern.
// The helpers f64 and f32 turn a Lua number into the bit pattern of a
// double or a single. A case with a mem table gets the scratch base in
// r5 unless scratch_reg says otherwise.
package script

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/vatine/ppuconform/pkg/asm"
	"github.com/vatine/ppuconform/pkg/cpu"
	"github.com/vatine/ppuconform/pkg/flags"
	"github.com/vatine/ppuconform/pkg/harness"
	"github.com/vatine/ppuconform/pkg/oracle"
)

var (
	ErrNoCases = errors.New("script defines no cases table")
	ErrField   = errors.New("bad case field")
)

func fieldError(ix int, field string, format string, args ...interface{}) error {
	return fmt.Errorf("%w: case %d, %s: %s", ErrField, ix, field, fmt.Sprintf(format, args...))
}

// Globals of the base library that reach the file system or compile
// code at run time.
var loaders = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// Only the side-effect free libraries are opened.
func newState(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	libs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name))
		if err != nil {
			L.Close()
			return nil, err
		}
	}
	for _, name := range loaders {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("f64", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(fmt.Sprintf("0x%016x", math.Float64bits(float64(L.CheckNumber(1))))))
		return 1
	}))
	L.SetGlobal("f32", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(fmt.Sprintf("0x%08x", math.Float32bits(float32(L.CheckNumber(1))))))
		return 1
	}))
	L.SetContext(ctx)
	return L, nil
}

// Load cases from the script at path.
func Load(ctx context.Context, path string) ([]harness.Case, error) {
	L, err := newState(ctx)
	if err != nil {
		return nil, err
	}
	defer L.Close()
	if err := L.DoFile(path); err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	cases, err := collect(L)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{"script": path, "cases": len(cases)}).Info("script loaded")
	return cases, nil
}

// Load cases from Lua source held in memory.
func LoadString(ctx context.Context, src string) ([]harness.Case, error) {
	L, err := newState(ctx)
	if err != nil {
		return nil, err
	}
	defer L.Close()
	if err := L.DoString(src); err != nil {
		return nil, err
	}
	return collect(L)
}

func collect(L *lua.LState) ([]harness.Case, error) {
	tbl, ok := L.GetGlobal("cases").(*lua.LTable)
	if !ok {
		return nil, ErrNoCases
	}
	var out []harness.Case
	var errs []error
	for i := 1; i <= tbl.Len(); i++ {
		entry, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			errs = append(errs, fieldError(i, "entry", "not a table"))
			continue
		}
		c, err := parseCase(i, entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, c)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func parseCase(ix int, t *lua.LTable) (harness.Case, error) {
	name := lua.LVAsString(t.RawGetString("name"))
	if name == "" {
		name = fmt.Sprintf("script case %d", ix)
	}

	var lines []string
	switch v := t.RawGetString("asm").(type) {
	case lua.LString:
		lines = []string{string(v)}
	case *lua.LTable:
		for i := 1; i <= v.Len(); i++ {
			lines = append(lines, lua.LVAsString(v.RawGetInt(i)))
		}
	}
	if len(lines) == 0 {
		return harness.Case{}, fieldError(ix, "asm", "missing")
	}

	setup, err := parseSetup(ix, t)
	if err != nil {
		return harness.Case{}, err
	}
	expect, ok := t.RawGetString("expect").(*lua.LTable)
	if !ok {
		return harness.Case{}, fieldError(ix, "expect", "missing")
	}
	chk, err := parseExpect(ix, expect)
	if err != nil {
		return harness.Case{}, err
	}

	c, err := harness.Sequence(name, harness.FamilyInteger, lines, setup, chk)
	if err != nil {
		return harness.Case{}, err
	}
	if f := t.RawGetString("family"); f != lua.LNil {
		if c.Family, err = harness.ParseFamily(lua.LVAsString(f)); err != nil {
			return harness.Case{}, fieldError(ix, "family", "%v", err)
		}
	} else {
		c.Family = familyOf(c.Subject())
	}
	return c, nil
}

// The family a case falls into when the script does not say.
func familyOf(word uint32) harness.Family {
	in, err := asm.Decode(word)
	if err != nil {
		return harness.FamilyInteger
	}
	if f, err := harness.ParseFamily(in.Def.Class.String()); err == nil {
		return f
	}
	return harness.FamilyInteger
}

func toUint(v lua.LValue) (uint64, error) {
	switch x := v.(type) {
	case lua.LNumber:
		f := float64(x)
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("%v is not an integer", f)
		}
		if f < 0 || f >= 1<<64 {
			return 0, fmt.Errorf("%v is out of range, use a string for this pattern", f)
		}
		return uint64(f), nil
	case lua.LString:
		if u, err := strconv.ParseUint(string(x), 0, 64); err == nil {
			return u, nil
		}
		i, err := strconv.ParseInt(string(x), 0, 64)
		return uint64(i), err
	}
	return 0, fmt.Errorf("%s is not a number", v.Type())
}

// Like toUint, but for signed fields such as branch displacements.
func toInt(v lua.LValue) (int64, error) {
	switch x := v.(type) {
	case lua.LNumber:
		f := float64(x)
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("%v is not an integer", f)
		}
		if f < -(1<<63) || f >= 1<<63 {
			return 0, fmt.Errorf("%v is out of range", f)
		}
		return int64(f), nil
	case lua.LString:
		return strconv.ParseInt(string(x), 0, 64)
	}
	return 0, fmt.Errorf("%s is not a number", v.Type())
}

func optUint(ix int, t *lua.LTable, key string) (uint64, error) {
	v := t.RawGetString(key)
	if v == lua.LNil {
		return 0, nil
	}
	u, err := toUint(v)
	if err != nil {
		return 0, fieldError(ix, key, "%v", err)
	}
	return u, nil
}

// A table of register number to value.
func registers(ix int, t *lua.LTable, key string) (map[int]uint64, error) {
	v, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return nil, nil
	}
	out := map[int]uint64{}
	var err error
	v.ForEach(func(k, val lua.LValue) {
		if err != nil {
			return
		}
		n, kerr := toUint(k)
		if kerr != nil || n > 31 {
			err = fieldError(ix, key, "bad register %v", k)
			return
		}
		u, verr := toUint(val)
		if verr != nil {
			err = fieldError(ix, key, "%v", verr)
			return
		}
		out[int(n)] = u
	})
	return out, err
}

func toVec(v lua.LValue) (oracle.Vec, error) {
	var r oracle.Vec
	t, ok := v.(*lua.LTable)
	if !ok || t.Len() != 4 {
		return r, fmt.Errorf("a vector is four words")
	}
	for i := range r {
		u, err := toUint(t.RawGetInt(i + 1))
		if err != nil {
			return r, err
		}
		r[i] = uint32(u)
	}
	return r, nil
}

// XER is part of the flag state, so only these two go through SPR.
var sprNames = map[string]int{"lr": cpu.SPRLR, "ctr": cpu.SPRCTR}

func parseSetup(ix int, t *lua.LTable) (harness.Setup, error) {
	var s harness.Setup
	var err error
	if s.GPR, err = registers(ix, t, "gpr"); err != nil {
		return s, err
	}
	if s.FPR, err = registers(ix, t, "fpr"); err != nil {
		return s, err
	}
	if vr, ok := t.RawGetString("vr").(*lua.LTable); ok {
		s.VR = map[int]oracle.Vec{}
		vr.ForEach(func(k, val lua.LValue) {
			if err != nil {
				return
			}
			n, kerr := toUint(k)
			v, verr := toVec(val)
			if kerr != nil || verr != nil || n > 31 {
				err = fieldError(ix, "vr", "bad entry %v", k)
				return
			}
			s.VR[int(n)] = v
		})
		if err != nil {
			return s, err
		}
	}
	for name, n := range sprNames {
		if t.RawGetString(name) == lua.LNil {
			continue
		}
		if s.SPR == nil {
			s.SPR = map[int]uint64{}
		}
		if s.SPR[n], err = optUint(ix, t, name); err != nil {
			return s, err
		}
	}
	if mem, ok := t.RawGetString("mem").(*lua.LTable); ok {
		s.Memory = map[uint32]uint32{}
		mem.ForEach(func(k, val lua.LValue) {
			if err != nil {
				return
			}
			off, kerr := toUint(k)
			w, verr := toUint(val)
			if kerr != nil || verr != nil || off%4 != 0 {
				err = fieldError(ix, "mem", "bad entry %v", k)
				return
			}
			s.Memory[uint32(off)] = uint32(w)
		})
		if err != nil {
			return s, err
		}
		s.ScratchReg = 5
	}
	if v := t.RawGetString("scratch_reg"); v != lua.LNil {
		n, err := toUint(v)
		if err != nil || n == 0 || n > 31 {
			return s, fieldError(ix, "scratch_reg", "bad register %v", v)
		}
		s.ScratchReg = int(n)
	}
	st, err := parseState(ix, t)
	s.State = st
	return s, err
}

// cr, xer, fpscr and vscr fields of t.
func parseState(ix int, t *lua.LTable) (flags.MachineState, error) {
	var st flags.MachineState
	var words [4]uint64
	for i, key := range []string{"cr", "xer", "fpscr", "vscr"} {
		u, err := optUint(ix, t, key)
		if err != nil {
			return st, err
		}
		words[i] = u
	}
	st.CR = flags.CR(words[0])
	st.XER = flags.XER(words[1])
	st.FPSCR = flags.FPSCR(words[2])
	st.VSCR = flags.VSCR(words[3])
	return st, nil
}

func parseExpect(ix int, t *lua.LTable) (harness.Checker, error) {
	kind := lua.LVAsString(t.RawGetString("kind"))
	u := func(key string) uint64 {
		v, _ := optUint(ix, t, key)
		return v
	}
	i := func(key string) int64 {
		v, _ := toInt(t.RawGetString(key))
		return v
	}
	// Validate every numeric field up front so u can stay quiet.
	var err error
	t.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		switch lua.LVAsString(k) {
		case "kind", "value", "words", "lowword", "undefined":
		case "target", "lr":
			if _, e := toInt(v); e != nil {
				err = fieldError(ix, "expect."+lua.LVAsString(k), "%v", e)
			}
		default:
			if _, e := toUint(v); e != nil {
				err = fieldError(ix, "expect."+lua.LVAsString(k), "%v", e)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	reg := int(u("reg"))

	switch kind {
	case "int":
		v, err := optUint(ix, t, "value")
		if err != nil {
			return nil, err
		}
		return harness.IntCheck{
			Reg:       reg,
			Value:     v,
			Undefined: lua.LVAsBool(t.RawGetString("undefined")),
			LowWord:   lua.LVAsBool(t.RawGetString("lowword")),
			XER:       uint32(u("xer")),
			CR:        uint32(u("cr")),
			CRMask:    uint32(u("crmask")),
		}, nil
	case "float":
		v, err := optUint(ix, t, "value")
		if err != nil {
			return nil, err
		}
		return harness.FloatCheck{
			Reg:     reg,
			Value:   v,
			LowWord: lua.LVAsBool(t.RawGetString("lowword")),
			FPSCR:   uint32(u("fpscr")),
			CR:      uint32(u("cr")),
		}, nil
	case "vec":
		v, err := toVec(t.RawGetString("value"))
		if err != nil {
			return nil, fieldError(ix, "expect.value", "%v", err)
		}
		return harness.VecCheck{Reg: reg, Value: v, VSCR: uint32(u("vscr")), CR: uint32(u("cr"))}, nil
	case "flags":
		st, err := parseState(ix, t)
		return harness.FlagsCheck{Want: st}, err
	case "branch":
		chk := harness.BranchCheck{Target: int32(i("target")), CTR: u("ctr")}
		if t.RawGetString("lr") != lua.LNil {
			chk.CheckLR = true
			chk.LROffset = int32(i("lr"))
		}
		return chk, nil
	case "mem":
		words, ok := t.RawGetString("words").(*lua.LTable)
		if !ok {
			return nil, fieldError(ix, "expect.words", "missing")
		}
		chk := harness.MemCheck{Offset: uint32(u("offset"))}
		for i := 1; i <= words.Len(); i++ {
			w, err := toUint(words.RawGetInt(i))
			if err != nil {
				return nil, fieldError(ix, "expect.words", "%v", err)
			}
			chk.Want = append(chk.Want, uint32(w))
		}
		return chk, nil
	}
	return nil, fieldError(ix, "expect.kind", "unknown kind %q", kind)
}
