// Package solver hosts function objects: it loads a case, decomposes its
// mesh over in-process partitions and advances time, driving every
// partition's function objects in lockstep.
package solver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"foammonitor/dictionary"
	"foammonitor/mesh"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// TimeSpec controls the time loop.
type TimeSpec struct {
	Start          float64 `yaml:"start"`
	End            float64 `yaml:"end"`
	DeltaT         float64 `yaml:"deltaT"`
	WritePrecision int     `yaml:"writePrecision"`
}

// MeshSpec describes the block mesh of the case.
type MeshSpec struct {
	Min   [3]float64 `yaml:"min"`
	Max   [3]float64 `yaml:"max"`
	Cells [3]int     `yaml:"cells"`
}

// Block converts the spec to a mesh.BlockSpec.
func (m MeshSpec) Block() mesh.BlockSpec {
	return mesh.BlockSpec{Min: vec(m.Min), Max: vec(m.Max), Cells: m.Cells}
}

// Decomposition sets the number of partitions.
type Decomposition struct {
	Partitions int `yaml:"partitions"`
}

// PlaneInit is a planar interface moving with a constant velocity. Cells
// behind the plane (against the normal) are inside.
type PlaneInit struct {
	Point    [3]float64 `yaml:"point"`
	Normal   [3]float64 `yaml:"normal"`
	Velocity [3]float64 `yaml:"velocity"`
}

// SphereInit is a sphere whose radius grows linearly in time.
type SphereInit struct {
	Centre     [3]float64 `yaml:"centre"`
	Radius     float64    `yaml:"radius"`
	GrowthRate float64    `yaml:"growthRate"`
}

// FieldInit sets one scalar field. Exactly one of Uniform, Plane and Sphere
// is given. Inside and Outside default to 1 and 0; a positive Width smooths
// the interface with a tanh profile.
type FieldInit struct {
	Name    string      `yaml:"name"`
	Uniform *float64    `yaml:"uniform"`
	Plane   *PlaneInit  `yaml:"plane"`
	Sphere  *SphereInit `yaml:"sphere"`
	Inside  *float64    `yaml:"inside"`
	Outside *float64    `yaml:"outside"`
	Width   float64     `yaml:"width"`
}

// Case is a simulation case file.
type Case struct {
	Name              string        `yaml:"name"`
	Time              TimeSpec      `yaml:"time"`
	Mesh              MeshSpec      `yaml:"mesh"`
	Decomposition     Decomposition `yaml:"decomposition"`
	Fields            []FieldInit   `yaml:"fields"`
	Functions         yaml.Node     `yaml:"functions"`
	RunTimeModifiable bool          `yaml:"runTimeModifiable"`
}

// LoadCase reads and validates a case file.
func LoadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}
	c, err := ParseCase(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return c, nil
}

// ParseCase decodes and validates a case document, applying defaults.
func ParseCase(data []byte) (*Case, error) {
	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse case: %w", err)
	}
	if c.Decomposition.Partitions == 0 {
		c.Decomposition.Partitions = 1
	}
	if c.Time.WritePrecision == 0 {
		c.Time.WritePrecision = 6
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the case for consistency.
func (c *Case) Validate() error {
	if c.Name == "" {
		return errors.New("case name is required")
	}
	if c.Time.DeltaT <= 0 {
		return fmt.Errorf("time.deltaT must be positive, got %v", c.Time.DeltaT)
	}
	if c.Time.End < c.Time.Start {
		return fmt.Errorf("time.end %v is before time.start %v", c.Time.End, c.Time.Start)
	}
	if c.Time.WritePrecision < 1 || c.Time.WritePrecision > 17 {
		return fmt.Errorf("time.writePrecision must be in [1, 17], got %d", c.Time.WritePrecision)
	}
	if err := c.Mesh.Block().Validate(); err != nil {
		return fmt.Errorf("mesh: %w", err)
	}
	if err := c.Mesh.Block().ValidatePartitions(c.Decomposition.Partitions); err != nil {
		return fmt.Errorf("decomposition: %w", err)
	}

	seen := make(map[string]bool)
	for i, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("fields[%d]: name is required", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("fields[%d]: duplicate field %q", i, f.Name)
		}
		seen[f.Name] = true
		if err := f.validate(); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}

	if _, err := c.FunctionsDict(); err != nil {
		return err
	}
	return nil
}

// FunctionsDict returns the functions entry as a dictionary. An absent entry
// is an empty dictionary.
func (c *Case) FunctionsDict() (*dictionary.Dict, error) {
	if c.Functions.Kind == 0 {
		return dictionary.New("functions"), nil
	}
	d, err := dictionary.FromNode("functions", &c.Functions)
	if err != nil {
		return nil, err
	}
	for _, name := range d.Keys() {
		if !d.IsDict(name) {
			return nil, fmt.Errorf("functions: entry %q must be a dictionary", name)
		}
	}
	return d, nil
}

// FunctionTypes returns the type of every function object, keyed by name.
func (c *Case) FunctionTypes() (map[string]string, error) {
	d, err := c.FunctionsDict()
	if err != nil {
		return nil, err
	}
	types := make(map[string]string, len(d.Keys()))
	for _, name := range d.Keys() {
		sub, err := d.SubDict(name)
		if err != nil {
			return nil, err
		}
		t, err := dictionary.Get[string](sub, "type")
		if err != nil {
			return nil, err
		}
		types[name] = t
	}
	return types, nil
}

func (f FieldInit) validate() error {
	n := 0
	if f.Uniform != nil {
		n++
	}
	if f.Plane != nil {
		n++
		if r3.Norm(vec(f.Plane.Normal)) == 0 {
			return errors.New("plane normal must be non-zero")
		}
	}
	if f.Sphere != nil {
		n++
		if f.Sphere.Radius < 0 {
			return fmt.Errorf("sphere radius must not be negative, got %v", f.Sphere.Radius)
		}
	}
	if n != 1 {
		return fmt.Errorf("exactly one of uniform, plane or sphere is required, got %d", n)
	}
	if f.Width < 0 {
		return fmt.Errorf("width must not be negative, got %v", f.Width)
	}
	return nil
}

func vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}
