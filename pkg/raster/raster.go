// Package raster draws a scene.Scene into an RGBA framebuffer on the CPU.
//
// Triangles are clipped against the near plane, culled by their node's side,
// flat shaded with the scene's ambient and directional lights and z-buffered.
// Grid lines are stroked onto an overlay with draw2d and composited where
// the grid plane is not hidden. With Antialias the frame is rendered at
// twice the resolution and scaled down.
package raster

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/chazu/badplaner/pkg/scene"
	"github.com/chazu/badplaner/pkg/snapshot"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/llgcode/draw2d/draw2dimg"
	"golang.org/x/image/draw"
)

// ErrDisposed is returned when rendering with a disposed renderer.
var ErrDisposed = errors.New("raster: renderer disposed")

// Options configure a Renderer.
type Options struct {
	// PreserveDrawingBuffer keeps the last frame readable after it is
	// presented. Without it Snapshot returns a blank image.
	PreserveDrawingBuffer bool
	Antialias             bool
	PixelRatio            float64
}

// Renderer owns the framebuffers for one canvas.
type Renderer struct {
	opts   Options
	width  int
	height int
	ss     int

	work    *image.RGBA
	depth   []float64
	overlay *image.RGBA
	frame   *image.RGBA

	rendered bool
	disposed bool
	frames   uint64
}

// New returns a 1x1 renderer.
func New(opts Options) *Renderer {
	if !(opts.PixelRatio > 0) {
		opts.PixelRatio = 1
	}
	ss := 1
	if opts.Antialias {
		ss = 2
	}
	return &Renderer{opts: opts, width: 1, height: 1, ss: ss}
}

// SetSize sets the logical size in CSS pixels. Buffers are reallocated on
// the next Render.
func (r *Renderer) SetSize(width, height int) {
	r.width = max(width, 1)
	r.height = max(height, 1)
}

// Size returns the logical size.
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// BufferSize returns the pixel size of rendered frames.
func (r *Renderer) BufferSize() (int, int) {
	return max(1, int(math.Round(float64(r.width)*r.opts.PixelRatio))),
		max(1, int(math.Round(float64(r.height)*r.opts.PixelRatio)))
}

// Frames returns the number of frames rendered.
func (r *Renderer) Frames() uint64 {
	return r.frames
}

// Disposed reports whether Dispose was called.
func (r *Renderer) Disposed() bool {
	return r.disposed
}

// Dispose releases the framebuffers. Later renders fail with ErrDisposed.
func (r *Renderer) Dispose() {
	r.disposed = true
	r.work, r.overlay, r.frame, r.depth = nil, nil, nil, nil
}

func (r *Renderer) ensureBuffers() {
	fw, fh := r.BufferSize()
	if r.frame != nil && r.frame.Bounds().Dx() == fw && r.frame.Bounds().Dy() == fh {
		return
	}
	bw, bh := fw*r.ss, fh*r.ss
	r.frame = image.NewRGBA(image.Rect(0, 0, fw, fh))
	r.work = image.NewRGBA(image.Rect(0, 0, bw, bh))
	r.overlay = image.NewRGBA(image.Rect(0, 0, bw, bh))
	r.depth = make([]float64, bw*bh)
	r.rendered = false
}

// Render draws sc as seen by cam.
func (r *Renderer) Render(sc *scene.Scene, cam *scene.Camera) error {
	if r.disposed {
		return ErrDisposed
	}
	r.ensureBuffers()

	draw.Draw(r.work, r.work.Bounds(), image.NewUniform(sc.Background), image.Point{}, draw.Src)
	for i := range r.depth {
		r.depth[i] = math.Inf(1)
	}

	vp := cam.ViewProjection()
	lights := collectLights(sc)
	for _, n := range sc.Nodes {
		switch n.Kind {
		case scene.KindFloor, scene.KindWall, scene.KindFixture:
			r.drawMesh(n, vp, cam.Position, lights)
		}
	}
	for _, n := range sc.OfKind(scene.KindGrid) {
		r.drawGrid(n, vp)
	}

	if r.ss == 1 {
		draw.Draw(r.frame, r.frame.Bounds(), r.work, image.Point{}, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(r.frame, r.frame.Bounds(), r.work, r.work.Bounds(), draw.Src, nil)
	}
	r.rendered = true
	r.frames++
	return nil
}

// Snapshot returns a copy of the last frame, or nil before the first render.
func (r *Renderer) Snapshot() image.Image {
	if r.disposed || !r.rendered {
		return nil
	}
	out := image.NewRGBA(r.frame.Bounds())
	if r.opts.PreserveDrawingBuffer {
		copy(out.Pix, r.frame.Pix)
	}
	return out
}

// DataURL returns the last frame as a PNG data URL, or "" before the first
// render.
func (r *Renderer) DataURL() string {
	img := r.Snapshot()
	if img == nil {
		return ""
	}
	url, err := snapshot.EncodeDataURL(img)
	if err != nil {
		return ""
	}
	return url
}

// ---------------------------------------------------------------------------
// Lighting
// ---------------------------------------------------------------------------

type directional struct {
	dir   mgl64.Vec3
	color mgl64.Vec3
}

type lighting struct {
	ambient mgl64.Vec3
	suns    []directional
}

func colorVec(c color.RGBA, intensity float64) mgl64.Vec3 {
	return mgl64.Vec3{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255}.Mul(intensity)
}

func collectLights(sc *scene.Scene) lighting {
	var l lighting
	for _, n := range sc.Nodes {
		switch n.Kind {
		case scene.KindAmbientLight:
			l.ambient = l.ambient.Add(colorVec(n.Color, n.Intensity))
		case scene.KindDirectionalLight:
			if n.Position.Len() == 0 {
				continue
			}
			l.suns = append(l.suns, directional{dir: n.Position.Normalize(), color: colorVec(n.Color, n.Intensity)})
		}
	}
	return l
}

func (l lighting) shade(albedo color.RGBA, normal mgl64.Vec3) color.RGBA {
	light := l.ambient
	for _, s := range l.suns {
		if d := normal.Dot(s.dir); d > 0 {
			light = light.Add(s.color.Mul(d))
		}
	}
	ch := func(v uint8, k float64) uint8 {
		return uint8(math.Round(math.Min(1, float64(v)/255*k) * 255))
	}
	return color.RGBA{R: ch(albedo.R, light[0]), G: ch(albedo.G, light[1]), B: ch(albedo.B, light[2]), A: 0xff}
}

// ---------------------------------------------------------------------------
// Triangles
// ---------------------------------------------------------------------------

type point struct {
	x, y, z float64
}

func (r *Renderer) drawMesh(n *scene.Node, vp mgl64.Mat4, eye mgl64.Vec3, lights lighting) {
	for _, tri := range n.WorldTriangles() {
		normal := tri.Normal
		facing := normal.Dot(eye.Sub(tri.V[0]))
		switch n.Side {
		case scene.FrontSide:
			if facing <= 0 {
				continue
			}
		case scene.BackSide:
			if facing >= 0 {
				continue
			}
			normal = normal.Mul(-1)
		case scene.DoubleSide:
			if facing < 0 {
				normal = normal.Mul(-1)
			}
		}
		col := lights.shade(n.Color, normal)

		poly := clipNear([]mgl64.Vec4{
			vp.Mul4x1(tri.V[0].Vec4(1)),
			vp.Mul4x1(tri.V[1].Vec4(1)),
			vp.Mul4x1(tri.V[2].Vec4(1)),
		})
		if len(poly) < 3 {
			continue
		}
		pts := make([]point, len(poly))
		for i, c := range poly {
			pts[i] = r.toScreen(c)
		}
		for i := 1; i+1 < len(pts); i++ {
			r.fill(pts[0], pts[i], pts[i+1], col)
		}
	}
}

// clipNear clips a clip-space polygon to z >= -w.
func clipNear(in []mgl64.Vec4) []mgl64.Vec4 {
	dist := func(v mgl64.Vec4) float64 { return v[2] + v[3] }
	out := make([]mgl64.Vec4, 0, len(in)+1)
	for i := range in {
		a, b := in[i], in[(i+1)%len(in)]
		da, db := dist(a), dist(b)
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			t := da / (da - db)
			out = append(out, a.Add(b.Sub(a).Mul(t)))
		}
	}
	return out
}

func (r *Renderer) toScreen(c mgl64.Vec4) point {
	bw, bh := float64(r.work.Bounds().Dx()), float64(r.work.Bounds().Dy())
	return point{
		x: (c[0]/c[3] + 1) * 0.5 * bw,
		y: (1 - c[1]/c[3]) * 0.5 * bh,
		z: c[2] / c[3],
	}
}

func edge(a, b point, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

func (r *Renderer) fill(a, b, c point, col color.RGBA) {
	area := edge(a, b, c.x, c.y)
	if math.Abs(area) < 1e-12 || math.IsNaN(area) {
		return
	}
	bw, bh := r.work.Bounds().Dx(), r.work.Bounds().Dy()
	minX := max(0, int(math.Floor(math.Min(a.x, math.Min(b.x, c.x)))))
	maxX := min(bw-1, int(math.Ceil(math.Max(a.x, math.Max(b.x, c.x)))))
	minY := max(0, int(math.Floor(math.Min(a.y, math.Min(b.y, c.y)))))
	maxY := min(bh-1, int(math.Ceil(math.Max(a.y, math.Max(b.y, c.y)))))

	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			w0 := edge(b, c, px, py) / area
			w1 := edge(c, a, px, py) / area
			w2 := edge(a, b, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*a.z + w1*b.z + w2*c.z
			i := y*bw + x
			if z < -1 || z > 1 || z >= r.depth[i] {
				continue
			}
			r.depth[i] = z
			r.work.SetRGBA(x, y, col)
		}
	}
}

// ---------------------------------------------------------------------------
// Grid
// ---------------------------------------------------------------------------

// clipSegment clips a clip-space segment to the view frustum's side and
// near planes.
func clipSegment(a, b mgl64.Vec4) (mgl64.Vec4, mgl64.Vec4, bool) {
	planes := []func(v mgl64.Vec4) float64{
		func(v mgl64.Vec4) float64 { return v[3] + v[0] },
		func(v mgl64.Vec4) float64 { return v[3] - v[0] },
		func(v mgl64.Vec4) float64 { return v[3] + v[1] },
		func(v mgl64.Vec4) float64 { return v[3] - v[1] },
		func(v mgl64.Vec4) float64 { return v[3] + v[2] },
	}
	t0, t1 := 0.0, 1.0
	for _, p := range planes {
		da, db := p(a), p(b)
		switch {
		case da < 0 && db < 0:
			return a, b, false
		case da < 0:
			t0 = math.Max(t0, da/(da-db))
		case db < 0:
			t1 = math.Min(t1, da/(da-db))
		}
	}
	if t0 > t1 {
		return a, b, false
	}
	d := b.Sub(a)
	return a.Add(d.Mul(t0)), a.Add(d.Mul(t1)), true
}

func (r *Renderer) drawGrid(n *scene.Node, vp mgl64.Mat4) {
	draw.Draw(r.overlay, r.overlay.Bounds(), image.Transparent, image.Point{}, draw.Src)

	gc := draw2dimg.NewGraphicContext(r.overlay)
	gc.SetLineWidth(float64(r.ss) * r.opts.PixelRatio)
	drawn := 0
	for _, l := range n.WorldLines() {
		a, b, ok := clipSegment(vp.Mul4x1(l.A.Vec4(1)), vp.Mul4x1(l.B.Vec4(1)))
		if !ok {
			continue
		}
		pa, pb := r.toScreen(a), r.toScreen(b)
		gc.SetStrokeColor(l.Color)
		gc.BeginPath()
		gc.MoveTo(pa.x, pa.y)
		gc.LineTo(pb.x, pb.y)
		gc.Stroke()
		drawn++
	}
	if drawn > 0 {
		r.compositeGrid(n.Position[1], vp)
	}
}

// compositeGrid blends overlay pixels whose grid-plane depth passes the
// depth test.
func (r *Renderer) compositeGrid(planeY float64, vp mgl64.Mat4) {
	inv := vp.Inv()
	bw, bh := r.work.Bounds().Dx(), r.work.Bounds().Dy()
	unproject := func(x, y, z float64) mgl64.Vec3 {
		v := inv.Mul4x1(mgl64.Vec4{x, y, z, 1})
		return v.Vec3().Mul(1 / v[3])
	}

	for y := 0; y < bh; y++ {
		ndcY := 1 - (float64(y)+0.5)/float64(bh)*2
		for x := 0; x < bw; x++ {
			o := r.overlay.RGBAAt(x, y)
			if o.A == 0 {
				continue
			}
			ndcX := (float64(x)+0.5)/float64(bw)*2 - 1
			from := unproject(ndcX, ndcY, -1)
			dir := unproject(ndcX, ndcY, 1).Sub(from)
			if math.Abs(dir[1]) < 1e-12 {
				continue
			}
			t := (planeY - from[1]) / dir[1]
			if t < 0 || t > 1 {
				continue
			}
			clip := vp.Mul4x1(from.Add(dir.Mul(t)).Vec4(1))
			if z := clip[2] / clip[3]; z > r.depth[y*bw+x]+1e-5 {
				continue
			}
			d := r.work.RGBAAt(x, y)
			k := 1 - float64(o.A)/255
			r.work.SetRGBA(x, y, color.RGBA{
				R: o.R + uint8(float64(d.R)*k),
				G: o.G + uint8(float64(d.G)*k),
				B: o.B + uint8(float64(d.B)*k),
				A: 0xff,
			})
		}
	}
}
