package script

import (
	"fmt"
	"strings"

	"github.com/chazu/badplaner/pkg/room"
	"github.com/chazu/badplaner/pkg/scene"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites layout source before zygomys sees it:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols.
//  2. kebab-case identifiers become snake_case, since zygomys reads a
//     hyphen as subtraction.
//  3. ; comments become // comments.
//
// String literals are left alone.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"':
			j := i + 1
			for j < len(b) && b[j] != '"' {
				if b[j] == '\\' && j+1 < len(b) {
					j++
				}
				j++
			}
			j = min(j+1, len(b))
			result = append(result, b[i:j]...)
			i = j

		case b[i] == '`':
			j := i + 1
			for j < len(b) && b[j] != '`' {
				j++
			}
			j = min(j+1, len(b))
			result = append(result, b[i:j]...)
			i = j

		case b[i] == ';':
			result = append(result, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}

		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			result = append(result, ':', '=')
			i += 2

		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j

		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			result = append(result, '_')
			i++

		default:
			result = append(result, b[i])
			i++
		}
	}
	return string(result)
}

func isLetter(c byte) bool    { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isKWChar(c byte) bool    { return isIdentChar(c) || c == '-' }
func isIdentChar(c byte) bool { return isLetter(c) || (c >= '0' && c <= '9') || c == '_' }

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpVec3 carries a room.Vec3 between builtins.
type sexpVec3 struct {
	vec room.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword arguments
// ---------------------------------------------------------------------------

// kwPrefix marks keyword strings produced by preprocessSource.
const kwPrefix = "__kw_"

// isKW returns the keyword name when s is a preprocessed keyword.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs splits args into keyword and positional arguments. A trailing
// keyword without a value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// unknownKeys returns an error naming the first keyword not in allowed.
func (a kwArgs) unknownKeys(allowed ...string) error {
	for k := range a.kw {
		found := false
		for _, ok := range allowed {
			if k == ok {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown keyword :%s", k)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts a keyword (:oak) or a plain string ("oak").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toVec3(s zygo.Sexp) (room.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return room.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toMaterial(s zygo.Sexp) (room.Material, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return "", err
	}
	return room.ParseMaterial(name)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the layout builtins into env. They record into
// l as the script runs; later calls override earlier ones.
func registerBuiltins(env *zygo.Zlisp, l *room.Layout) {

	// (room :width 4 :depth 3 :height 2.5)
	env.AddFunction("room", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeys("width", "depth", "height"); err != nil {
			return zygo.SexpNull, fmt.Errorf("room: %w", err)
		}
		d := room.DefaultDimensions
		if l.Room != nil {
			d = *l.Room
		}
		for key, dst := range map[string]*float64{"width": &d.Width, "depth": &d.Depth, "height": &d.Height} {
			v, ok := pa.kw[key]
			if !ok {
				continue
			}
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("room: %s: %w", key, err)
			}
			*dst = f
		}
		l.Room = &d
		return zygo.SexpNull, nil
	})

	// (view :orbit), (view :first-person), (view :plan)
	env.AddFunction("view", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("view requires exactly 1 argument, got %d", len(args))
		}
		s, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("view: %w", err)
		}
		m, err := scene.ParseViewMode(s)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("view: %w", err)
		}
		l.Mode = &m
		return zygo.SexpNull, nil
	})

	// (grid true)
	env.AddFunction("grid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("grid requires exactly 1 argument, got %d", len(args))
		}
		on, err := toBool(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("grid: %w", err)
		}
		l.ShowGrid = &on
		return zygo.SexpNull, nil
	})

	// (select "Wand-WC")
	env.AddFunction("select", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("select requires an item name")
		}
		item, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("select: %w", err)
		}
		l.Select = item
		return zygo.SexpNull, nil
	})

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: room.Vec3{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// (place "Wand-WC" :at (vec3 0 0.4 -1.2) :rotation (vec3 0 90 0)
	//        :size (vec3 0.36 0.4 0.54) :material :oak)
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("place requires an item name as first argument")
		}
		if err := pa.unknownKeys("at", "rotation", "size", "material"); err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}
		item, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: item: %w", err)
		}

		t := room.Transform{Material: room.Neutral}
		for key, dst := range map[string]*room.Vec3{"at": &t.Position, "rotation": &t.Rotation, "size": &t.Size} {
			v, ok := pa.kw[key]
			if !ok {
				continue
			}
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: %s: %w", key, err)
			}
			*dst = vec
		}
		if v, ok := pa.kw["material"]; ok {
			m, err := toMaterial(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: material: %w", err)
			}
			t.Material = m
		}

		l.Place = &room.LayoutPlacement{Item: item, Transform: t}
		return zygo.SexpNull, nil
	})
}
