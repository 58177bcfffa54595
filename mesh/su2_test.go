package mesh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Unit square split into four triangles around a center point
const su2Square = `NDIME= 2
NELEM= 4
5 0 1 4 0
5 1 2 4 1
5 2 3 4 2
5 3 0 4 3
NPOIN= 5
0.0 0.0 0
1.0 0.0 1
1.0 1.0 2
0.0 1.0 3
0.5 0.5 4
NMARK= 4
MARKER_TAG= bottom
MARKER_ELEMS= 1
3 0 1
MARKER_TAG= right
MARKER_ELEMS= 1
3 1 2
MARKER_TAG= top
MARKER_ELEMS= 1
3 2 3
MARKER_TAG= left
MARKER_ELEMS= 1
3 3 0
`

func TestReadSU2(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "square.su2")
	assert.NoError(t, os.WriteFile(fileName, []byte(su2Square), 0644))
	top := ReadSU2(fileName)
	{ // Counts: five points, eight primal edges, four markers
		assert.Equal(t, 5, top.NumPoints())
		assert.Equal(t, 8, top.NumEdges())
		assert.Equal(t, 4, len(top.Markers))
	}
	{ // Median dual volumes: one third of each incident triangle
		assert.InDelta(t, 1./3., top.Points[4].Volume, 1.e-14)
		for ip := 0; ip < 4; ip++ {
			assert.InDelta(t, 1./6., top.Points[ip].Volume, 1.e-14)
		}
		var total float64
		for _, p := range top.Points {
			total += p.Volume
		}
		assert.InDelta(t, 1., total, 1.e-14)
	}
	{ // Outward marker normals, half edge length per endpoint
		bottom := top.Marker("bottom")
		assert.NotNil(t, bottom)
		assert.Equal(t, 2, len(bottom.Vertices))
		for _, v := range bottom.Vertices {
			assert.InDelta(t, 0., v.Normal[0], 1.e-14)
			assert.InDelta(t, -0.5, v.Normal[1], 1.e-14)
		}
		left := top.Marker("left")
		for _, v := range left.Vertices {
			assert.InDelta(t, -0.5, v.Normal[0], 1.e-14)
		}
	}
	{ // Every control volume closes: interior dual faces plus boundary
		// faces telescope to zero
		sum := make([][3]float64, top.NumPoints())
		for ip := 0; ip < top.NumPoints(); ip++ {
			for _, er := range top.Incident(ip) {
				n := top.Edges[er.Edge].Normal
				for d := 0; d < 2; d++ {
					sum[ip][d] += er.Sign * n[d]
				}
			}
		}
		for _, m := range top.Markers {
			for _, v := range m.Vertices {
				for d := 0; d < 2; d++ {
					sum[v.Point][d] += v.Normal[d]
				}
			}
		}
		for ip := range sum {
			assert.InDelta(t, 0., sum[ip][0], 1.e-14)
			assert.InDelta(t, 0., sum[ip][1], 1.e-14)
		}
	}
	{ // Normal neighbors point into the domain
		for _, m := range top.Markers {
			for _, v := range m.Vertices {
				assert.NotEqual(t, v.Point, v.NormalNeighbor)
				var (
					cv  = top.Points[v.Point].Coord
					cn  = top.Points[v.NormalNeighbor].Coord
					dot float64
				)
				for d := 0; d < 2; d++ {
					dot -= (cn[d] - cv[d]) * v.Normal[d]
				}
				assert.True(t, dot > 0)
			}
		}
	}
	{ // Negative orientation in the file is repaired, not fatal
		flipped := filepath.Join(t.TempDir(), "flipped.su2")
		content := su2Square
		content = content[:len("NDIME= 2\nNELEM= 4\n")] +
			"5 1 0 4 0\n" + content[len("NDIME= 2\nNELEM= 4\n5 0 1 4 0\n"):]
		assert.NoError(t, os.WriteFile(flipped, []byte(content), 0644))
		top2 := ReadSU2(flipped)
		var total float64
		for _, p := range top2.Points {
			total += p.Volume
		}
		assert.InDelta(t, 1., total, 1.e-14)
	}
}
