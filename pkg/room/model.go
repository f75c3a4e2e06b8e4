// Package room holds the editable state of one planning session: room
// dimensions, the selected catalog item, its transform, the view mode and
// the grid flag. The viewport only ever sees the derived scene.Config.
package room

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Sentinel errors for names that are not part of a closed set.
var (
	ErrUnknownField    = errors.New("unknown field")
	ErrUnknownItem     = errors.New("unknown catalog item")
	ErrUnknownMaterial = errors.New("unknown material")
)

// ----------------------------------------------------------------------------
// Vectors and dimensions
// ----------------------------------------------------------------------------

// Vec3 is a JSON-friendly 3-vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec converts v to a mathgl vector.
func (v Vec3) Vec() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

// Set stores value on the named axis (x, y or z).
func (v *Vec3) Set(axis string, value float64) error {
	switch strings.ToLower(axis) {
	case "x":
		v.X = value
	case "y":
		v.Y = value
	case "z":
		v.Z = value
	default:
		return fmt.Errorf("%w: axis %q", ErrUnknownField, axis)
	}
	return nil
}

// Dimensions is the room size in meters. Values are never negative.
type Dimensions struct {
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Height float64 `json:"height"`
}

// DefaultDimensions is the room a new session starts with.
var DefaultDimensions = Dimensions{Width: 4, Depth: 3, Height: 2.5}

// Clamped returns d with negative values replaced by 0.
func (d Dimensions) Clamped() Dimensions {
	return Dimensions{
		Width:  math.Max(0, d.Width),
		Depth:  math.Max(0, d.Depth),
		Height: math.Max(0, d.Height),
	}
}

// ParseNumber parses user input as a float. Anything that is not a finite
// number yields 0.
func ParseNumber(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ----------------------------------------------------------------------------
// Materials
// ----------------------------------------------------------------------------

// Material is one of a closed set of surface finishes.
type Material string

const (
	Neutral  Material = "Neutral"
	Concrete Material = "Concrete"
	Oak      Material = "Oak"
	Marble   Material = "Marble"
)

// Materials lists the closed set in menu order.
var Materials = []Material{Neutral, Concrete, Oak, Marble}

var materialLabels = map[Material]string{
	Neutral:  "Neutral",
	Concrete: "Beton",
	Oak:      "Eiche",
	Marble:   "Marmor",
}

var materialColors = map[Material]color.RGBA{
	Neutral:  {R: 0xd9, G: 0xdd, B: 0xe3, A: 0xff},
	Concrete: {R: 0x9e, G: 0x9e, B: 0x9a, A: 0xff},
	Oak:      {R: 0xb5, G: 0x8b, B: 0x5a, A: 0xff},
	Marble:   {R: 0xee, G: 0xee, B: 0xea, A: 0xff},
}

// ParseMaterial accepts a material name or its German label, ignoring case.
func ParseMaterial(s string) (Material, error) {
	s = strings.TrimSpace(s)
	for _, m := range Materials {
		if strings.EqualFold(s, string(m)) || strings.EqualFold(s, materialLabels[m]) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMaterial, s)
}

// Label is the name shown in the material menu.
func (m Material) Label() string {
	if l, ok := materialLabels[m]; ok {
		return l
	}
	return string(m)
}

// Color is the display color; unknown materials render as Neutral.
func (m Material) Color() color.RGBA {
	if c, ok := materialColors[m]; ok {
		return c
	}
	return materialColors[Neutral]
}

// ----------------------------------------------------------------------------
// Transform
// ----------------------------------------------------------------------------

// Transform is the pose of the selected item. Rotation is in degrees.
type Transform struct {
	Position Vec3     `json:"position"`
	Rotation Vec3     `json:"rotation"`
	Size     Vec3     `json:"size"`
	Material Material `json:"material"`
}

// DefaultTransform is the transform a new session starts with.
func DefaultTransform() Transform {
	return Transform{
		Position: Vec3{Y: 0.25},
		Size:     Vec3{X: 0.8, Y: 0.8, Z: 0.8},
		Material: Neutral,
	}
}

// Section returns the vector named by section: position, rotation or size.
func (t *Transform) Section(section string) (*Vec3, error) {
	switch strings.ToLower(section) {
	case "position":
		return &t.Position, nil
	case "rotation":
		return &t.Rotation, nil
	case "size":
		return &t.Size, nil
	}
	return nil, fmt.Errorf("%w: section %q", ErrUnknownField, section)
}
