// Package mesh holds the finite-volume geometry of one mesh partition:
// cell centres and volumes, internal faces and boundary patches.
package mesh

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// PatchKind distinguishes physical boundaries from inter-partition boundaries.
type PatchKind int

const (
	// WallPatch is a physical boundary of the global domain.
	WallPatch PatchKind = iota
	// ProcessorPatch couples this partition to a neighbouring rank.
	ProcessorPatch
)

// String returns the patch kind name.
func (k PatchKind) String() string {
	switch k {
	case WallPatch:
		return "wall"
	case ProcessorPatch:
		return "processor"
	default:
		return "unknown"
	}
}

// BoundaryFace is a face owned by one local cell on a patch.
type BoundaryFace struct {
	Owner int
	Sf    r3.Vec // area vector, pointing out of the owner cell
	Cf    r3.Vec

	// RemoteCentre is the centre of the neighbouring cell on the other rank.
	// Only set on processor patches.
	RemoteCentre r3.Vec
}

// Patch is a named group of boundary faces.
type Patch struct {
	Name          string
	Kind          PatchKind
	NeighbourRank int
	Faces         []BoundaryFace
}

// Mesh is the local partition of a decomposed mesh.
// Internal face f separates Owner[f] and Neighbour[f]; Sf[f] points from owner
// to neighbour.
type Mesh struct {
	Rank    int
	Centres []r3.Vec
	Volumes []float64

	Owner     []int
	Neighbour []int
	Sf        []r3.Vec
	Cf        []r3.Vec

	Patches []Patch
}

// NCells returns the number of local cells.
func (m *Mesh) NCells() int {
	return len(m.Volumes)
}

// NInternalFaces returns the number of internal faces.
func (m *Mesh) NInternalFaces() int {
	return len(m.Owner)
}

// CellVolumes returns the per-cell volumes. The slice is shared; callers must
// not modify it.
func (m *Mesh) CellVolumes() []float64 {
	return m.Volumes
}

// TotalVolume returns the local (partition) volume.
func (m *Mesh) TotalVolume() float64 {
	return floats.Sum(m.Volumes)
}

// ProcessorPatches returns the patches shared with other ranks.
func (m *Mesh) ProcessorPatches() []Patch {
	var out []Patch
	for _, p := range m.Patches {
		if p.Kind == ProcessorPatch {
			out = append(out, p)
		}
	}
	return out
}

// Patch looks up a patch by name.
func (m *Mesh) Patch(name string) (Patch, bool) {
	for _, p := range m.Patches {
		if p.Name == name {
			return p, true
		}
	}
	return Patch{}, false
}
