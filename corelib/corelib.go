// Package corelib provides the standard float and string natives a cell
// machine program expects to find.
package corelib

import (
	"math"
	"strconv"
	"strings"

	"github.com/chazu/cellbridge/vm"
)

// Rounding methods accepted by floatround.
const (
	RoundNearest vm.Cell = iota
	RoundFloor
	RoundCeil
	RoundToZero
)

// Angle modes accepted by the trigonometric natives.
const (
	Radian vm.Cell = iota
	Degrees
	Grades
)

// Natives returns the library keyed by native name.
func Natives() map[string]vm.Native {
	return map[string]vm.Native{
		"float":       float,
		"floatstr":    floatstr,
		"floatmul":    binary(func(a, b float32) float32 { return a * b }),
		"floatdiv":    binary(func(a, b float32) float32 { return a / b }),
		"floatadd":    binary(func(a, b float32) float32 { return a + b }),
		"floatsub":    binary(func(a, b float32) float32 { return a - b }),
		"floatfract":  unary(func(f float64) float64 { return f - math.Floor(f) }),
		"floatround":  floatround,
		"floatcmp":    floatcmp,
		"floatsqroot": unary(math.Sqrt),
		"floatpower":  floatpower,
		"floatlog":    floatlog,
		"floatsin":    trig(math.Sin),
		"floatcos":    trig(math.Cos),
		"floattan":    trig(math.Tan),
		"floatasin":   arc(math.Asin),
		"floatacos":   arc(math.Acos),
		"floatatan":   arc(math.Atan),
		"floatatan2":  floatatan2,
		"floatabs":    unary(math.Abs),
		"strlen":      strlen,
		"strval":      strval,
		"valstr":      valstr,
		"strcmp":      strcmp,
	}
}

// Register binds every library native into t.
func Register(t *vm.NativeTable) {
	for name, fn := range Natives() {
		t.Register(name, fn)
	}
}

// arg returns argument i (1-based) or zero when the caller passed fewer.
func arg(params []vm.Cell, i int) vm.Cell {
	n := int(params[0]) / vm.CellWidth
	if i > n || i >= len(params) {
		return 0
	}
	return params[i]
}

func argCount(params []vm.Cell) int {
	return min(int(params[0])/vm.CellWidth, len(params)-1)
}

func argFloat(params []vm.Cell, i int) float64 {
	return float64(arg(params, i).Float())
}

func readString(m *vm.Machine, addr vm.Cell) string {
	phys, err := m.Addr(addr)
	if err != nil {
		return ""
	}
	return vm.GetString(phys, 0)
}

// ---------------------------------------------------------------------------
// Floats
// ---------------------------------------------------------------------------

func float(m *vm.Machine, params []vm.Cell) vm.Cell {
	return vm.FloatCell(float32(arg(params, 1)))
}

func floatstr(m *vm.Machine, params []vm.Cell) vm.Cell {
	s := strings.TrimSpace(readString(m, arg(params, 1)))
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		f = leadingFloat(s)
	}
	return vm.FloatCell(float32(f))
}

// leadingFloat parses the longest numeric prefix of s, or returns 0.
func leadingFloat(s string) float64 {
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 32); err == nil {
			return f
		}
	}
	return 0
}

func binary(op func(a, b float32) float32) vm.Native {
	return func(m *vm.Machine, params []vm.Cell) vm.Cell {
		return vm.FloatCell(op(arg(params, 1).Float(), arg(params, 2).Float()))
	}
}

func unary(op func(float64) float64) vm.Native {
	return func(m *vm.Machine, params []vm.Cell) vm.Cell {
		return vm.FloatCell(float32(op(argFloat(params, 1))))
	}
}

func floatround(m *vm.Machine, params []vm.Cell) vm.Cell {
	f := argFloat(params, 1)
	switch arg(params, 2) {
	case RoundFloor:
		f = math.Floor(f)
	case RoundCeil:
		f = math.Ceil(f)
	case RoundToZero:
		f = math.Trunc(f)
	default:
		f = math.Floor(f + 0.5)
	}
	return vm.Cell(int32(f))
}

func floatcmp(m *vm.Machine, params []vm.Cell) vm.Cell {
	a, b := arg(params, 1).Float(), arg(params, 2).Float()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func floatpower(m *vm.Machine, params []vm.Cell) vm.Cell {
	return vm.FloatCell(float32(math.Pow(argFloat(params, 1), argFloat(params, 2))))
}

func floatlog(m *vm.Machine, params []vm.Cell) vm.Cell {
	v := argFloat(params, 1)
	base := 10.0
	if argCount(params) >= 2 {
		base = argFloat(params, 2)
	}
	if v <= 0 || base <= 0 {
		return vm.FloatCell(float32(math.NaN()))
	}
	if base == 10 {
		return vm.FloatCell(float32(math.Log10(v)))
	}
	return vm.FloatCell(float32(math.Log(v) / math.Log(base)))
}

func toRadians(f float64, mode vm.Cell) float64 {
	switch mode {
	case Degrees:
		return f * math.Pi / 180
	case Grades:
		return f * math.Pi / 200
	}
	return f
}

func fromRadians(f float64, mode vm.Cell) float64 {
	switch mode {
	case Degrees:
		return f * 180 / math.Pi
	case Grades:
		return f * 200 / math.Pi
	}
	return f
}

func trig(op func(float64) float64) vm.Native {
	return func(m *vm.Machine, params []vm.Cell) vm.Cell {
		return vm.FloatCell(float32(op(toRadians(argFloat(params, 1), arg(params, 2)))))
	}
}

func arc(op func(float64) float64) vm.Native {
	return func(m *vm.Machine, params []vm.Cell) vm.Cell {
		return vm.FloatCell(float32(fromRadians(op(argFloat(params, 1)), arg(params, 2))))
	}
}

func floatatan2(m *vm.Machine, params []vm.Cell) vm.Cell {
	a := math.Atan2(argFloat(params, 1), argFloat(params, 2))
	return vm.FloatCell(float32(fromRadians(a, arg(params, 3))))
}

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

func strlen(m *vm.Machine, params []vm.Cell) vm.Cell {
	phys, err := m.Addr(arg(params, 1))
	if err != nil {
		return 0
	}
	return vm.Cell(vm.StrLen(phys))
}

func strval(m *vm.Machine, params []vm.Cell) vm.Cell {
	s := strings.TrimSpace(readString(m, arg(params, 1)))
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return vm.Cell(int32(n))
}

// valstr(dest[], value, bool:pack = false)
func valstr(m *vm.Machine, params []vm.Cell) vm.Cell {
	phys, err := m.Addr(arg(params, 1))
	if err != nil {
		return 0
	}
	s := strconv.Itoa(int(arg(params, 2)))
	vm.PutString(phys, s, arg(params, 3) != 0)
	return 0
}

// strcmp(const string1[], const string2[], bool:ignorecase = false, length = cellmax)
func strcmp(m *vm.Machine, params []vm.Cell) vm.Cell {
	a := readString(m, arg(params, 1))
	b := readString(m, arg(params, 2))
	if argCount(params) >= 4 {
		if n := int(arg(params, 4)); n >= 0 {
			a, b = a[:min(n, len(a))], b[:min(n, len(b))]
		}
	}
	if arg(params, 3) != 0 {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	return vm.Cell(strings.Compare(a, b))
}
