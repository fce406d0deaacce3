package solver

import (
	"math"
	"testing"

	"foammonitor/fields"
	"foammonitor/mesh"

	"gonum.org/v1/gonum/spatial/r3"
)

func ptr(v float64) *float64 { return &v }

func TestSetFields(t *testing.T) {
	m, err := mesh.BlockSpec{Max: r3.Vec{X: 1, Y: 1, Z: 1}, Cells: [3]int{4, 1, 1}}.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	// cell centres at x = 0.125, 0.375, 0.625, 0.875
	inits := []FieldInit{
		{Name: "p", Uniform: ptr(2)},
		{Name: "alpha.water", Plane: &PlaneInit{Normal: [3]float64{1, 0, 0}, Point: [3]float64{0.25, 0, 0}, Velocity: [3]float64{1, 0, 0}}},
		{Name: "alpha.bubble", Sphere: &SphereInit{Centre: [3]float64{0, 0.5, 0.5}, Radius: 0.2, GrowthRate: 0.5}, Inside: ptr(0), Outside: ptr(1)},
	}

	reg := fields.NewRegistry()
	if err := SetFields(reg, m, inits, 0.25); err != nil {
		t.Fatalf("SetFields() error: %v", err)
	}

	tests := []struct {
		name string
		want []float64
	}{
		{"p", []float64{2, 2, 2, 2}},
		// plane moved to x = 0.5
		{"alpha.water", []float64{1, 1, 0, 0}},
		// radius grew to 0.325
		{"alpha.bubble", []float64{0, 1, 1, 1}},
	}
	for _, tt := range tests {
		f, err := reg.LookupScalar(tt.name)
		if err != nil {
			t.Fatalf("LookupScalar(%s) error: %v", tt.name, err)
		}
		for i, v := range tt.want {
			if f.Values[i] != v {
				t.Errorf("%s[%d] = %v, want %v", tt.name, i, f.Values[i], v)
			}
		}
	}
}

func TestSetFields_SmoothProfile(t *testing.T) {
	m, _ := mesh.BlockSpec{Max: r3.Vec{X: 1, Y: 1, Z: 1}, Cells: [3]int{2, 1, 1}}.Build()
	inits := []FieldInit{{
		Name:  "alpha.water",
		Plane: &PlaneInit{Normal: [3]float64{1, 0, 0}, Point: [3]float64{0.5, 0, 0}},
		Width: 0.25,
	}}
	reg := fields.NewRegistry()
	if err := SetFields(reg, m, inits, 0); err != nil {
		t.Fatalf("SetFields() error: %v", err)
	}
	f, _ := reg.LookupScalar("alpha.water")
	want := 0.5 * (1 - math.Tanh(-1))
	if math.Abs(f.Values[0]-want) > 1e-12 || math.Abs(f.Values[1]-(1-want)) > 1e-12 {
		t.Errorf("values = %v, want [%v %v]", f.Values, want, 1-want)
	}
}
