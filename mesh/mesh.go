package mesh

import "math"

// Vertex-centered dual-mesh topology. Points carry the dual control
// volume, edges carry the area-weighted face normal shared by the two
// adjacent control volumes. The topology is immutable after
// construction; solvers only read it.

type Point struct {
	Coord   [3]float64
	Volume  float64
	GridVel [3]float64
	Domain  bool // false for halo points owned by another partition
}

type Edge struct {
	// Ordered pair of adjacent point indices. The normal is
	// area-weighted and oriented from Points[0] towards Points[1].
	Points [2]int
	Normal [3]float64
}

// Vertex is one boundary vertex of a marker. The normal is
// area-weighted and points out of the domain. NormalNeighbor is the
// nearest interior point along the boundary normal, used for one-sided
// gradients.
type Vertex struct {
	Point          int
	Normal         [3]float64
	NormalNeighbor int
}

type Marker struct {
	Tag      string
	Vertices []Vertex
}

// EdgeRef is one entry of a point's incident-edge list: Sign is +1 when
// the point is the edge origin (flux leaves through the normal), -1
// when it is the destination.
type EdgeRef struct {
	Edge int
	Sign float64
}

type Topology struct {
	NDim        int
	Points      []Point
	Edges       []Edge
	Markers     []Marker
	DynamicGrid bool

	incident [][]EdgeRef
}

// BuildIncidence derives the per-point incident-edge lists. Must be
// called once after Points/Edges are final; the fixed list order is
// what makes the scatter phase of assembly deterministic.
func (t *Topology) BuildIncidence() {
	t.incident = make([][]EdgeRef, len(t.Points))
	for ie, e := range t.Edges {
		t.incident[e.Points[0]] = append(t.incident[e.Points[0]], EdgeRef{ie, 1})
		t.incident[e.Points[1]] = append(t.incident[e.Points[1]], EdgeRef{ie, -1})
	}
}

func (t *Topology) NumPoints() int { return len(t.Points) }
func (t *Topology) NumEdges() int  { return len(t.Edges) }

func (t *Topology) Incident(iPoint int) []EdgeRef { return t.incident[iPoint] }

// NumDomainPoints counts points owned by this partition.
func (t *Topology) NumDomainPoints() (n int) {
	for _, p := range t.Points {
		if p.Domain {
			n++
		}
	}
	return
}

// EdgePairs returns the point index pairs of all edges, the input for
// the Jacobian sparsity pattern.
func (t *Topology) EdgePairs() (pairs [][2]int) {
	pairs = make([][2]int, len(t.Edges))
	for i, e := range t.Edges {
		pairs[i] = e.Points
	}
	return
}

// SetUniformGridVel assigns one grid velocity to every point and marks
// the topology as moving, the rigid-translation description of mesh
// motion.
func (t *Topology) SetUniformGridVel(vel [3]float64) {
	t.DynamicGrid = true
	for i := range t.Points {
		t.Points[i].GridVel = vel
	}
}

// Marker returns the marker with the given tag, or nil.
func (t *Topology) Marker(tag string) *Marker {
	for i := range t.Markers {
		if t.Markers[i].Tag == tag {
			return &t.Markers[i]
		}
	}
	return nil
}

func Distance(nDim int, a, b [3]float64) (d float64) {
	for i := 0; i < nDim; i++ {
		d += (b[i] - a[i]) * (b[i] - a[i])
	}
	return math.Sqrt(d)
}

func Norm(nDim int, v [3]float64) (n float64) {
	for i := 0; i < nDim; i++ {
		n += v[i] * v[i]
	}
	return math.Sqrt(n)
}

func Dot(nDim int, a, b [3]float64) (d float64) {
	for i := 0; i < nDim; i++ {
		d += a[i] * b[i]
	}
	return
}
