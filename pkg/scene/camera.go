package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera defaults.
const (
	FieldOfView = 60.0
	NearPlane   = 0.1
	FarPlane    = 1000.0
)

// Camera is a perspective camera oriented by yaw (about +Y) and pitch
// (about the camera's X axis). At zero yaw and pitch it looks down -Z.
type Camera struct {
	Position mgl64.Vec3
	Yaw      float64
	Pitch    float64
	FOV      float64 // vertical, degrees
	Aspect   float64
	Near     float64
	Far      float64
}

// NewCamera returns a camera at the origin with the default lens.
func NewCamera(aspect float64) *Camera {
	c := &Camera{FOV: FieldOfView, Near: NearPlane, Far: FarPlane}
	c.SetAspect(aspect)
	return c
}

// SetAspect updates the projection aspect. Non-positive or NaN values are
// treated as square.
func (c *Camera) SetAspect(aspect float64) {
	if !(aspect > 0) || math.IsInf(aspect, 0) {
		aspect = 1
	}
	c.Aspect = aspect
}

// Forward is the unit view direction.
func (c *Camera) Forward() mgl64.Vec3 {
	sy, cy := math.Sincos(c.Yaw)
	sp, cp := math.Sincos(c.Pitch)
	return mgl64.Vec3{-cp * sy, sp, -cp * cy}
}

// Up is the unit up direction of the image plane.
func (c *Camera) Up() mgl64.Vec3 {
	sy, cy := math.Sincos(c.Yaw)
	sp, cp := math.Sincos(c.Pitch)
	return mgl64.Vec3{sp * sy, cp, sp * cy}
}

// Right is the unit right direction; it is always horizontal.
func (c *Camera) Right() mgl64.Vec3 {
	sy, cy := math.Sincos(c.Yaw)
	return mgl64.Vec3{cy, 0, -sy}
}

// LookAt turns the camera toward target. When target is straight above or
// below, yaw is kept so the image does not spin.
func (c *Camera) LookAt(target mgl64.Vec3) {
	dir := target.Sub(c.Position)
	if dir.Len() == 0 {
		return
	}
	dir = dir.Normalize()
	c.Pitch = math.Asin(mgl64.Clamp(dir[1], -1, 1))
	if math.Hypot(dir[0], dir[2]) > 1e-9 {
		c.Yaw = math.Atan2(-dir[0], -dir[2])
	}
}

// Rotate adds to yaw and pitch, keeping pitch within [-pi/2, pi/2].
func (c *Camera) Rotate(dYaw, dPitch float64) {
	c.Yaw += dYaw
	c.Pitch = mgl64.Clamp(c.Pitch+dPitch, -math.Pi/2, math.Pi/2)
}

// MoveForward moves parallel to the floor along the view direction.
func (c *Camera) MoveForward(distance float64) {
	sy, cy := math.Sincos(c.Yaw)
	c.Position = c.Position.Add(mgl64.Vec3{-sy, 0, -cy}.Mul(distance))
}

// MoveRight moves sideways parallel to the floor.
func (c *Camera) MoveRight(distance float64) {
	c.Position = c.Position.Add(c.Right().Mul(distance))
}

// View is the world-to-camera matrix.
func (c *Camera) View() mgl64.Mat4 {
	return mgl64.LookAtV(c.Position, c.Position.Add(c.Forward()), c.Up())
}

// Projection is the camera-to-clip matrix.
func (c *Camera) Projection() mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(c.FOV), c.Aspect, c.Near, c.Far)
}

// ViewProjection is Projection * View.
func (c *Camera) ViewProjection() mgl64.Mat4 {
	return c.Projection().Mul4(c.View())
}

// PlaceCamera positions and aims cam for the configuration's view mode.
// Orbit and first person start above and outside a corner looking at the
// room center; plan view looks straight down from above the center.
func PlaceCamera(cam *Camera, cfg Config) {
	span := cfg.Span()
	if cfg.Mode == ViewPlan {
		cam.Position = mgl64.Vec3{0, span * 2, 0}
		cam.Yaw = 0
		cam.Pitch = -math.Pi / 2
		return
	}
	cam.Position = mgl64.Vec3{span * 1.2, math.Max(1.6, cfg.Height*0.6), span * 1.2}
	cam.LookAt(cfg.Center())
}
