package scene

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Severity ranks a finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "info"
}

// Finding is an advisory note about a configuration. Findings never block
// a build.
type Finding struct {
	Severity Severity `json:"severity"`
	Subject  string   `json:"subject"`
	Message  string   `json:"message"`
}

// Validate checks cfg for degenerate rooms and misplaced fixtures.
func Validate(cfg Config) []Finding {
	var out []Finding
	for _, dim := range []struct {
		name  string
		value float64
	}{{"width", cfg.Width}, {"depth", cfg.Depth}, {"height", cfg.Height}} {
		if dim.value <= 0 {
			out = append(out, Finding{
				Severity: SeverityWarning,
				Subject:  "room",
				Message:  fmt.Sprintf("room %s is zero; walls will be invisible", dim.name),
			})
		}
	}

	p := cfg.Fixture
	if p.IsZero() {
		return out
	}
	if p.Size[0] <= 0 || p.Size[1] <= 0 || p.Size[2] <= 0 {
		return append(out, Finding{
			Severity: SeverityWarning,
			Subject:  p.Item,
			Message:  "fixture has a zero size and will not be drawn",
		})
	}

	hx, hz := Footprint(p)
	if math.Abs(p.Position[0])+hx > cfg.Width/2+1e-9 || math.Abs(p.Position[2])+hz > cfg.Depth/2+1e-9 {
		out = append(out, Finding{
			Severity: SeverityWarning,
			Subject:  p.Item,
			Message:  "fixture extends past the walls",
		})
	}
	if p.Position[1] < 0 {
		out = append(out, Finding{
			Severity: SeverityWarning,
			Subject:  p.Item,
			Message:  "fixture sits below the floor",
		})
	}
	if p.Position[1]+p.Size[1] > cfg.Height+1e-9 {
		out = append(out, Finding{
			Severity: SeverityInfo,
			Subject:  p.Item,
			Message:  "fixture is taller than the room",
		})
	}
	return out
}

// Footprint returns the half extents in X and Z of a placement after its
// rotation about Y.
func Footprint(p Placement) (hx, hz float64) {
	s, c := math.Sincos(mgl64.DegToRad(p.Rotation[1]))
	s, c = math.Abs(s), math.Abs(c)
	hx = (c*p.Size[0] + s*p.Size[2]) / 2
	hz = (s*p.Size[0] + c*p.Size[2]) / 2
	return hx, hz
}
