package solver

import (
	"fmt"
	"math"

	"foammonitor/fields"
	"foammonitor/mesh"

	"gonum.org/v1/gonum/spatial/r3"
)

// SetFields evaluates every initialiser on the cells of m at time t and
// stores the result in reg, replacing any previous values.
func SetFields(reg *fields.Registry, m *mesh.Mesh, inits []FieldInit, t float64) error {
	for _, init := range inits {
		f := fields.NewScalarField(init.Name, m.NCells())
		eval, err := init.evaluator(t)
		if err != nil {
			return fmt.Errorf("field %q: %w", init.Name, err)
		}
		for c, x := range m.Centres {
			f.Values[c] = eval(x)
		}
		if err := reg.Store(f); err != nil {
			return err
		}
	}
	return nil
}

// evaluator returns the field value as a function of position at time t.
func (f FieldInit) evaluator(t float64) (func(r3.Vec) float64, error) {
	if f.Uniform != nil {
		v := *f.Uniform
		return func(r3.Vec) float64 { return v }, nil
	}

	inside, outside := 1.0, 0.0
	if f.Inside != nil {
		inside = *f.Inside
	}
	if f.Outside != nil {
		outside = *f.Outside
	}

	var dist func(r3.Vec) float64
	switch {
	case f.Plane != nil:
		n := r3.Unit(vec(f.Plane.Normal))
		p := r3.Add(vec(f.Plane.Point), r3.Scale(t, vec(f.Plane.Velocity)))
		dist = func(x r3.Vec) float64 { return r3.Dot(r3.Sub(x, p), n) }
	case f.Sphere != nil:
		c := vec(f.Sphere.Centre)
		r := math.Max(f.Sphere.Radius+f.Sphere.GrowthRate*t, 0)
		dist = func(x r3.Vec) float64 { return r3.Norm(r3.Sub(x, c)) - r }
	default:
		return nil, fmt.Errorf("no initialiser given")
	}

	// signed distance is negative inside
	if f.Width > 0 {
		w := f.Width
		return func(x r3.Vec) float64 {
			s := 0.5 * (1 - math.Tanh(dist(x)/w))
			return outside + (inside-outside)*s
		}, nil
	}
	return func(x r3.Vec) float64 {
		if dist(x) < 0 {
			return inside
		}
		return outside
	}, nil
}
