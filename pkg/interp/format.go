package interp

import (
	"fmt"
	"strings"

	"github.com/bruggerl/clara/pkg/runtime"
)

// unescape decodes the escape sequences parsers leave in literal text:
// \t \b \n \r \' \" \\. A backslash before anything else is kept as-is.
func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '\'':
			b.WriteByte('\'')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			continue
		}
		i++
	}
	return b.String()
}

// formatValues applies the %-directive subset parsers emit for print
// formatting: %d %s %f %c %b %x %o %%, with optional width and precision
// (e.g. %5d, %.2f). %n is a newline.
func formatValues(format string, args []runtime.Value) (string, error) {
	var b strings.Builder
	next := 0
	take := func() (runtime.Value, error) {
		if next >= len(args) {
			return nil, Errf(ErrRuntime, "not enough arguments for format %q", format)
		}
		v := args[next]
		next++
		return v, nil
	}

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			b.WriteByte(format[i])
			continue
		}
		i++
		if i >= len(format) {
			return "", Errf(ErrRuntime, "trailing %% in format %q", format)
		}
		// Optional width and precision digits.
		spec := ""
		for i < len(format) && (format[i] == '-' || format[i] == '.' || (format[i] >= '0' && format[i] <= '9')) {
			spec += string(format[i])
			i++
		}
		if i >= len(format) {
			return "", Errf(ErrRuntime, "incomplete directive in format %q", format)
		}
		verb := format[i]
		switch verb {
		case '%':
			b.WriteByte('%')
		case 'n':
			b.WriteByte('\n')
		case 'd', 'x', 'o':
			v, err := take()
			if err != nil {
				return "", err
			}
			n, err := formatInt(v)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%"+spec+string(verb), n)
		case 'f':
			v, err := take()
			if err != nil {
				return "", err
			}
			f, err := formatFloat(v)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%"+spec+"f", f)
		case 'c':
			v, err := take()
			if err != nil {
				return "", err
			}
			n, err := formatInt(v)
			if err != nil {
				return "", err
			}
			b.WriteRune(rune(n))
		case 'b':
			v, err := take()
			if err != nil {
				return "", err
			}
			if runtime.Truthy(v) {
				b.WriteString("true")
			} else {
				b.WriteString("false")
			}
		case 's':
			v, err := take()
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%"+spec+"s", v.String())
		default:
			return "", Errf(ErrRuntime, "unsupported directive %%%c in format %q", verb, format)
		}
	}
	if next < len(args) {
		return "", Errf(ErrRuntime, "%d unused arguments for format %q", len(args)-next, format)
	}
	return b.String(), nil
}

func formatInt(v runtime.Value) (int64, error) {
	switch n := v.(type) {
	case runtime.IntValue:
		return n.Val, nil
	case runtime.BoolValue:
		if n.Val {
			return 1, nil
		}
		return 0, nil
	case runtime.FloatValue:
		return int64(n.Val), nil
	}
	return 0, Errf(ErrRuntime, "cannot format '%s' as integer", v)
}

func formatFloat(v runtime.Value) (float64, error) {
	switch n := v.(type) {
	case runtime.FloatValue:
		return n.Val, nil
	case runtime.IntValue:
		return float64(n.Val), nil
	case runtime.BoolValue:
		if n.Val {
			return 1, nil
		}
		return 0, nil
	}
	return 0, Errf(ErrRuntime, "cannot format '%s' as float", v)
}
