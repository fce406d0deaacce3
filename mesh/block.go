package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// BlockSpec describes a uniform hexahedral block mesh.
type BlockSpec struct {
	Min   r3.Vec
	Max   r3.Vec
	Cells [3]int
}

// Validate checks the block extents and cell counts.
func (b BlockSpec) Validate() error {
	for d, n := range b.Cells {
		if n < 1 {
			return fmt.Errorf("block needs at least one cell in direction %d, got %d", d, n)
		}
	}
	if b.Max.X <= b.Min.X || b.Max.Y <= b.Min.Y || b.Max.Z <= b.Min.Z {
		return fmt.Errorf("block max %v must exceed min %v in every direction", b.Max, b.Min)
	}
	return nil
}

// ValidatePartitions checks that the block can be split into n slabs.
func (b BlockSpec) ValidatePartitions(n int) error {
	if n < 1 {
		return fmt.Errorf("partition count must be positive, got %d", n)
	}
	if n > b.Cells[0] {
		return fmt.Errorf("cannot split %d cells in x into %d partitions", b.Cells[0], n)
	}
	return nil
}

// CellSize returns the cell edge lengths.
func (b BlockSpec) CellSize() r3.Vec {
	return r3.Vec{
		X: (b.Max.X - b.Min.X) / float64(b.Cells[0]),
		Y: (b.Max.Y - b.Min.Y) / float64(b.Cells[1]),
		Z: (b.Max.Z - b.Min.Z) / float64(b.Cells[2]),
	}
}

// NCells returns the global cell count.
func (b BlockSpec) NCells() int {
	return b.Cells[0] * b.Cells[1] * b.Cells[2]
}

// Build returns the whole block as a single partition.
func (b BlockSpec) Build() (*Mesh, error) {
	return b.Partition(0, 1)
}

// SlabRange returns the global x-index range [i0, i1) owned by rank.
func (b BlockSpec) SlabRange(rank, n int) (int, int) {
	nx := b.Cells[0]
	base, rem := nx/n, nx%n
	i0 := rank*base + min(rank, rem)
	i1 := i0 + base
	if rank < rem {
		i1++
	}
	return i0, i1
}

// Partition builds the slab of the block owned by rank out of n ranks.
// Slabs are cut normal to x. Faces on processor patches are ordered by (k, j)
// on both sides so exchanged values line up.
func (b BlockSpec) Partition(rank, n int) (*Mesh, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := b.ValidatePartitions(n); err != nil {
		return nil, err
	}
	if rank < 0 || rank >= n {
		return nil, fmt.Errorf("rank %d out of range [0, %d)", rank, n)
	}

	i0, i1 := b.SlabRange(rank, n)
	nxl, ny, nz := i1-i0, b.Cells[1], b.Cells[2]
	h := b.CellSize()
	vol := h.X * h.Y * h.Z
	ax, ay, az := h.Y*h.Z, h.X*h.Z, h.X*h.Y

	centre := func(i, j, k int) r3.Vec {
		return r3.Vec{
			X: b.Min.X + (float64(i)+0.5)*h.X,
			Y: b.Min.Y + (float64(j)+0.5)*h.Y,
			Z: b.Min.Z + (float64(k)+0.5)*h.Z,
		}
	}
	local := func(i, j, k int) int {
		return (i - i0) + nxl*(j+ny*k)
	}

	ncells := nxl * ny * nz
	m := &Mesh{
		Rank:    rank,
		Centres: make([]r3.Vec, ncells),
		Volumes: make([]float64, ncells),
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := i0; i < i1; i++ {
				c := local(i, j, k)
				m.Centres[c] = centre(i, j, k)
				m.Volumes[c] = vol
			}
		}
	}

	addFace := func(own, nei int, sf, cf r3.Vec) {
		m.Owner = append(m.Owner, own)
		m.Neighbour = append(m.Neighbour, nei)
		m.Sf = append(m.Sf, sf)
		m.Cf = append(m.Cf, cf)
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := i0; i < i1; i++ {
				c := centre(i, j, k)
				if i+1 < i1 {
					addFace(local(i, j, k), local(i+1, j, k), r3.Vec{X: ax},
						r3.Vec{X: c.X + h.X/2, Y: c.Y, Z: c.Z})
				}
				if j+1 < ny {
					addFace(local(i, j, k), local(i, j+1, k), r3.Vec{Y: ay},
						r3.Vec{X: c.X, Y: c.Y + h.Y/2, Z: c.Z})
				}
				if k+1 < nz {
					addFace(local(i, j, k), local(i, j, k+1), r3.Vec{Z: az},
						r3.Vec{X: c.X, Y: c.Y, Z: c.Z + h.Z/2})
				}
			}
		}
	}

	// x boundaries: wall at the domain ends, processor between slabs
	xSide := func(i, ghost int, sign float64, wallName string, neighbour int) Patch {
		p := Patch{Name: wallName, Kind: WallPatch, NeighbourRank: -1}
		if neighbour >= 0 {
			p = Patch{
				Name:          fmt.Sprintf("procBoundary%dto%d", rank, neighbour),
				Kind:          ProcessorPatch,
				NeighbourRank: neighbour,
			}
		}
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				c := centre(i, j, k)
				f := BoundaryFace{
					Owner: local(i, j, k),
					Sf:    r3.Vec{X: sign * ax},
					Cf:    r3.Vec{X: c.X + sign*h.X/2, Y: c.Y, Z: c.Z},
				}
				if neighbour >= 0 {
					f.RemoteCentre = centre(ghost, j, k)
				}
				p.Faces = append(p.Faces, f)
			}
		}
		return p
	}
	left, right := -1, -1
	if rank > 0 {
		left = rank - 1
	}
	if rank < n-1 {
		right = rank + 1
	}
	m.Patches = append(m.Patches,
		xSide(i0, i0-1, -1, "xMin", left),
		xSide(i1-1, i1, 1, "xMax", right),
	)

	ySide := func(j int, sign float64, name string) Patch {
		p := Patch{Name: name, Kind: WallPatch, NeighbourRank: -1}
		for k := 0; k < nz; k++ {
			for i := i0; i < i1; i++ {
				c := centre(i, j, k)
				p.Faces = append(p.Faces, BoundaryFace{
					Owner: local(i, j, k),
					Sf:    r3.Vec{Y: sign * ay},
					Cf:    r3.Vec{X: c.X, Y: c.Y + sign*h.Y/2, Z: c.Z},
				})
			}
		}
		return p
	}
	zSide := func(k int, sign float64, name string) Patch {
		p := Patch{Name: name, Kind: WallPatch, NeighbourRank: -1}
		for j := 0; j < ny; j++ {
			for i := i0; i < i1; i++ {
				c := centre(i, j, k)
				p.Faces = append(p.Faces, BoundaryFace{
					Owner: local(i, j, k),
					Sf:    r3.Vec{Z: sign * az},
					Cf:    r3.Vec{X: c.X, Y: c.Y, Z: c.Z + sign*h.Z/2},
				})
			}
		}
		return p
	}
	m.Patches = append(m.Patches,
		ySide(0, -1, "yMin"),
		ySide(ny-1, 1, "yMax"),
		zSide(0, -1, "zMin"),
		zSide(nz-1, 1, "zMax"),
	)

	return m, nil
}
