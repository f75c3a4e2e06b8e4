package scene

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestValidate(t *testing.T) {
	room := Config{Width: 4, Depth: 3, Height: 2.5}
	place := func(pos, rot, size mgl64.Vec3) Config {
		c := room
		c.Fixture = Placement{Item: "Unterschrank", Position: pos, Rotation: rot, Size: size}
		return c
	}

	tests := []struct {
		name    string
		cfg     Config
		want    int
		message string
	}{
		{"valid empty room", room, 0, ""},
		{"zero width", Config{Depth: 3, Height: 2.5}, 1, "width is zero"},
		{"all zero", Config{}, 3, "zero"},
		{"fixture inside", place(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}, mgl64.Vec3{0.8, 0.5, 0.5}), 0, ""},
		{"fixture past east wall", place(mgl64.Vec3{1.8, 0, 0}, mgl64.Vec3{}, mgl64.Vec3{0.8, 0.5, 0.5}), 1, "past the walls"},
		{"rotated fixture past north wall", place(mgl64.Vec3{0, 0, -1.2}, mgl64.Vec3{0, 90, 0}, mgl64.Vec3{0.8, 0.5, 0.2}), 1, "past the walls"},
		{"zero size", place(mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{0.8, 0, 0.8}), 1, "zero size"},
		{"below floor", place(mgl64.Vec3{0, -0.1, 0}, mgl64.Vec3{}, mgl64.Vec3{0.5, 0.5, 0.5}), 1, "below the floor"},
		{"too tall", place(mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{0.5, 3, 0.5}), 1, "taller"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.cfg)
			if len(got) != tt.want {
				t.Fatalf("got %d findings %v, want %d", len(got), got, tt.want)
			}
			if tt.message != "" && !strings.Contains(got[0].Message, tt.message) {
				t.Errorf("message %q, want containing %q", got[0].Message, tt.message)
			}
		})
	}
}

func TestFootprintRotation(t *testing.T) {
	hx, hz := Footprint(Placement{Size: mgl64.Vec3{2, 1, 1}, Rotation: mgl64.Vec3{0, 90, 0}})
	if !near(hx, 0.5) || !near(hz, 1) {
		t.Errorf("Footprint = (%v, %v), want (0.5, 1)", hx, hz)
	}
}
