package wire

// Coercion rules from spec.md §4.B: "numeric types inter-coerce, s/S
// inter-coerce, T/F/B inter-coerce", with the zero/non-zero test
// ('*' in the spec's table) applying when a numeric value is coerced
// into a boolean-flavored type. b, m, c, N and I never coerce into
// anything but themselves.

func isNumeric(t byte) bool {
	switch t {
	case TypeInt32, TypeInt64, TypeFloat32, TypeFloat64, TypeTimetag:
		return true
	}
	return false
}

func isBoolFlavor(t byte) bool {
	switch t {
	case TypeTrue, TypeFalse, TypeBool:
		return true
	}
	return false
}

func asFloat64(a Arg) float64 {
	switch a.Type {
	case TypeInt32:
		return float64(a.I)
	case TypeInt64, TypeTimetag:
		return float64(a.H)
	case TypeFloat32:
		return float64(a.F)
	case TypeFloat64:
		return a.D
	case TypeTrue:
		return 1
	case TypeFalse:
		return 0
	case TypeBool:
		return float64(a.I)
	}
	return 0
}

func numericFromFloat(t byte, v float64) Arg {
	switch t {
	case TypeInt32:
		return Arg{Type: t, I: int32(v)}
	case TypeInt64, TypeTimetag:
		return Arg{Type: t, H: int64(v)}
	case TypeFloat32:
		return Arg{Type: t, F: float32(v)}
	case TypeFloat64:
		return Arg{Type: t, D: v}
	}
	return Arg{Type: t}
}

// Coerce converts a into the requested type, returning ok=false when
// spec.md's table has no cell for that (from, to) pair.
func Coerce(a Arg, to byte) (Arg, bool) {
	if a.Type == to {
		return a, true
	}

	switch {
	case isNumeric(a.Type) && isNumeric(to):
		return numericFromFloat(to, asFloat64(a)), true

	case (a.Type == TypeString || a.Type == TypeSymbol) && (to == TypeString || to == TypeSymbol):
		return Arg{Type: to, Str: a.Str}, true

	case isBoolFlavor(a.Type) && isBoolFlavor(to):
		// T and F are self-describing, not convertible into each
		// other directly (the table leaves those two cells blank);
		// both still inter-coerce with B, which carries a payload.
		if (a.Type == TypeTrue && to == TypeFalse) || (a.Type == TypeFalse && to == TypeTrue) {
			return Arg{}, false
		}
		v := asFloat64(a) != 0
		return boolFlavorArg(to, v), true

	case isNumeric(a.Type) && a.Type != TypeTimetag && (to == TypeTrue || to == TypeFalse || to == TypeBool):
		// zero/non-zero test, spec.md's '*' cells; the table's t row
		// has no boolean cells.
		v := asFloat64(a) != 0
		return boolFlavorArg(to, v), true

	case isBoolFlavor(a.Type) && isNumeric(to) && to != TypeTimetag:
		v := asFloat64(a)
		return numericFromFloat(to, v), true
	}

	return Arg{}, false
}

// boolFlavorArg renders the truth value v as the requested tag. T and
// F are self-describing (no payload), so the result always reflects v
// regardless of which of T/F was nominally requested; B carries an
// explicit 0/1 payload.
func boolFlavorArg(to byte, v bool) Arg {
	if to == TypeBool {
		i := int32(0)
		if v {
			i = 1
		}
		return Arg{Type: TypeBool, I: i}
	}
	if v {
		return Arg{Type: TypeTrue}
	}
	return Arg{Type: TypeFalse}
}
