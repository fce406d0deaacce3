// Package fvc implements finite-volume calculus on a mesh partition.
package fvc

import (
	"errors"
	"fmt"

	"foammonitor/fields"
	"foammonitor/mesh"

	"gonum.org/v1/gonum/spatial/r3"
)

// Exchanger swaps values with neighbouring ranks. It is a collective call.
type Exchanger interface {
	Exchange(send map[int][]float64) (map[int][]float64, error)
}

// Operator evaluates differential operators on one partition. When the mesh
// has processor patches, every call is collective over Exchanger.
type Operator struct {
	Mesh      *mesh.Mesh
	Exchanger Exchanger
}

// NewOperator returns an operator bound to m. ex may be nil for an
// undecomposed mesh.
func NewOperator(m *mesh.Mesh, ex Exchanger) *Operator {
	return &Operator{Mesh: m, Exchanger: ex}
}

// Grad returns the Gauss linear cell gradient of f: face values are linearly
// interpolated between the cells either side, wall patches are zero-gradient
// and processor patches use the neighbouring rank's cell values.
func (o *Operator) Grad(f *fields.ScalarField) ([]r3.Vec, error) {
	m := o.Mesh
	if m == nil {
		return nil, errors.New("gradient operator has no mesh")
	}
	if f == nil {
		return nil, errors.New("gradient of nil field")
	}
	if len(f.Values) != m.NCells() {
		return nil, fmt.Errorf("field %q has %d values for %d cells", f.Name, len(f.Values), m.NCells())
	}
	phi := f.Values

	remote, err := o.haloValues(phi)
	if err != nil {
		return nil, fmt.Errorf("grad(%s): %w", f.Name, err)
	}

	sum := make([]r3.Vec, m.NCells())
	for face := range m.Owner {
		own, nei := m.Owner[face], m.Neighbour[face]
		w := weight(m.Sf[face], m.Cf[face], m.Centres[own], m.Centres[nei])
		phiF := w*phi[own] + (1-w)*phi[nei]
		flux := r3.Scale(phiF, m.Sf[face])
		sum[own] = r3.Add(sum[own], flux)
		sum[nei] = r3.Sub(sum[nei], flux)
	}

	for _, p := range m.Patches {
		switch p.Kind {
		case mesh.ProcessorPatch:
			vals := remote[p.NeighbourRank]
			if len(vals) != len(p.Faces) {
				return nil, fmt.Errorf("grad(%s): patch %s received %d values for %d faces",
					f.Name, p.Name, len(vals), len(p.Faces))
			}
			for i, bf := range p.Faces {
				w := weight(bf.Sf, bf.Cf, m.Centres[bf.Owner], bf.RemoteCentre)
				phiF := w*phi[bf.Owner] + (1-w)*vals[i]
				sum[bf.Owner] = r3.Add(sum[bf.Owner], r3.Scale(phiF, bf.Sf))
			}
		default:
			for _, bf := range p.Faces {
				sum[bf.Owner] = r3.Add(sum[bf.Owner], r3.Scale(phi[bf.Owner], bf.Sf))
			}
		}
	}

	for c := range sum {
		sum[c] = r3.Scale(1/m.Volumes[c], sum[c])
	}
	return sum, nil
}

// haloValues exchanges owner-cell values across processor patches.
func (o *Operator) haloValues(phi []float64) (map[int][]float64, error) {
	procs := o.Mesh.ProcessorPatches()
	if o.Exchanger == nil {
		if len(procs) > 0 {
			return nil, errors.New("mesh is decomposed but no exchanger is set")
		}
		return nil, nil
	}

	send := make(map[int][]float64, len(procs))
	for _, p := range procs {
		vals := make([]float64, len(p.Faces))
		for i, bf := range p.Faces {
			vals[i] = phi[bf.Owner]
		}
		send[p.NeighbourRank] = vals
	}
	return o.Exchanger.Exchange(send)
}

// Mag returns the per-cell magnitude of v.
func Mag(v []r3.Vec) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = r3.Norm(v[i])
	}
	return out
}

// weight is the owner-side linear interpolation factor of a face.
func weight(sf, cf, cOwn, cNei r3.Vec) float64 {
	den := r3.Dot(sf, r3.Sub(cNei, cOwn))
	if den == 0 {
		return 0.5
	}
	return r3.Dot(sf, r3.Sub(cNei, cf)) / den
}
