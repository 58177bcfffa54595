package mesh

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
)

// From here: https://su2code.github.io/docs_v7/Mesh-File/
type SU2ElementType uint8

const (
	ELType_LINE          SU2ElementType = 3
	ELType_Triangle                     = 5
	ELType_Quadrilateral                = 9
	ELType_Tetrahedral                  = 10
	ELType_Hexahedral                   = 12
	ELType_Prism                        = 13
	ELType_Pyramid                      = 14
)

// ReadSU2 parses an ASCII SU2 mesh file holding a 2D triangulation and
// builds the median-dual topology: each vertex owns one third of the
// area of every incident triangle, each primal edge carries the
// accumulated midpoint-to-centroid face normal of its adjacent
// triangles, and each boundary marker vertex carries half the length
// normal of its incident boundary line elements.
func ReadSU2(fileName string) (t *Topology) {
	f, err := os.Open(fileName)
	if err != nil {
		panic(fmt.Errorf("unable to open file %s\n %s", fileName, err))
	}
	defer f.Close()
	reader := bufio.NewReader(f)

	if nDim := readNumber(reader); nDim != 2 {
		panic(fmt.Errorf("unable to read %d dimensional SU2 meshes", nDim))
	}
	tris := readTriangles(reader)
	coords := readCoordinates(reader)
	bcEdges := readMarkerEdges(reader)

	t = &Topology{NDim: 2}
	t.Points = make([]Point, len(coords))
	for i, c := range coords {
		t.Points[i] = Point{Coord: c, Domain: true}
	}
	buildMedianDual(t, tris)
	buildMarkers(t, tris, bcEdges)
	t.BuildIncidence()
	return
}

func readTriangles(reader *bufio.Reader) (tris [][3]int) {
	var (
		nType      int
		v1, v2, v3 int
		err        error
	)
	nElem := readNumber(reader)
	tris = make([][3]int, nElem)
	for k := 0; k < nElem; k++ {
		line := getLine(reader)
		if _, err = fmt.Sscanf(line, "%d %d %d %d", &nType, &v1, &v2, &v3); err != nil {
			panic(err)
		}
		if SU2ElementType(nType) != ELType_Triangle {
			panic("unable to deal with non-triangular elements right now")
		}
		tris[k] = [3]int{v1, v2, v3}
	}
	return
}

func readCoordinates(reader *bufio.Reader) (coords [][3]float64) {
	var (
		x, y float64
		err  error
	)
	nPoints := readNumber(reader)
	coords = make([][3]float64, nPoints)
	for i := 0; i < nPoints; i++ {
		line := getLine(reader)
		if _, err = fmt.Sscanf(line, "%f %f", &x, &y); err != nil {
			panic(err)
		}
		coords[i] = [3]float64{x, y}
	}
	return
}

func readMarkerEdges(reader *bufio.Reader) (bcEdges map[string][][2]int) {
	var (
		nType  int
		v1, v2 int
		err    error
	)
	nMarkers := readNumber(reader)
	bcEdges = make(map[string][][2]int, nMarkers)
	for n := 0; n < nMarkers; n++ {
		label := readLabel(reader)
		nEdges := readNumber(reader)
		edges := make([][2]int, nEdges)
		for i := 0; i < nEdges; i++ {
			line := getLine(reader)
			if _, err = fmt.Sscanf(line, "%d %d %d", &nType, &v1, &v2); err != nil {
				panic(err)
			}
			if SU2ElementType(nType) != ELType_LINE {
				panic("BCs should only contain line elements in 2D")
			}
			edges[i] = [2]int{v1, v2}
		}
		bcEdges[label] = append(bcEdges[label], edges...)
	}
	return
}

// buildMedianDual accumulates the dual volumes and the per-edge face
// normals over all triangles. Within one triangle the dual face of a
// primal edge runs from the edge midpoint to the centroid; its normal,
// rotated a quarter turn, is oriented from the lower-numbered endpoint
// to the higher one so contributions of the two adjacent triangles add.
func buildMedianDual(t *Topology, tris [][3]int) {
	normals := make(map[[2]int][3]float64)
	for _, tri := range tris {
		var (
			pa = t.Points[tri[0]].Coord
			pb = t.Points[tri[1]].Coord
			pc = t.Points[tri[2]].Coord
		)
		area2 := (pb[0]-pa[0])*(pc[1]-pa[1]) - (pc[0]-pa[0])*(pb[1]-pa[1])
		if area2 == 0 {
			panic(fmt.Errorf("degenerate triangle %v", tri))
		}
		if area2 < 0 {
			tri[1], tri[2] = tri[2], tri[1]
			area2 = -area2
		}
		third := area2 / 6
		centroid := [3]float64{}
		for _, v := range tri {
			t.Points[v].Volume += third
			centroid[0] += t.Points[v].Coord[0] / 3
			centroid[1] += t.Points[v].Coord[1] / 3
		}
		for e := 0; e < 3; e++ {
			var (
				a, b = tri[e], tri[(e+1)%3]
				ca   = t.Points[a].Coord
				cb   = t.Points[b].Coord
				mid  = [3]float64{0.5 * (ca[0] + cb[0]), 0.5 * (ca[1] + cb[1])}
				// Quarter turn of midpoint-to-centroid
				n = [3]float64{centroid[1] - mid[1], mid[0] - centroid[0]}
			)
			// Orient from a towards b, then store under the sorted key
			if n[0]*(cb[0]-ca[0])+n[1]*(cb[1]-ca[1]) < 0 {
				n[0], n[1] = -n[0], -n[1]
			}
			key := [2]int{a, b}
			if a > b {
				key = [2]int{b, a}
				n[0], n[1] = -n[0], -n[1]
			}
			acc := normals[key]
			acc[0] += n[0]
			acc[1] += n[1]
			normals[key] = acc
		}
	}
	keys := make([][2]int, 0, len(normals))
	for k := range normals {
		keys = append(keys, k)
	}
	// Deterministic edge numbering regardless of map iteration order
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	t.Edges = make([]Edge, len(keys))
	for i, k := range keys {
		t.Edges[i] = Edge{Points: k, Normal: normals[k]}
	}
}

// buildMarkers converts the boundary line elements into per-vertex
// area-weighted outward normals. The outward direction of one line
// element is fixed by the opposite vertex of its owning triangle. The
// normal neighbor is the edge neighbor most aligned with the inward
// normal.
func buildMarkers(t *Topology, tris [][3]int, bcEdges map[string][][2]int) {
	// Owning triangle lookup for boundary edges
	opposite := make(map[[2]int]int)
	for _, tri := range tris {
		for e := 0; e < 3; e++ {
			a, b := tri[e], tri[(e+1)%3]
			if a > b {
				a, b = b, a
			}
			opposite[[2]int{a, b}] = tri[(e+2)%3]
		}
	}
	neighbors := make(map[int][]int)
	for _, e := range t.Edges {
		neighbors[e.Points[0]] = append(neighbors[e.Points[0]], e.Points[1])
		neighbors[e.Points[1]] = append(neighbors[e.Points[1]], e.Points[0])
	}

	tags := make([]string, 0, len(bcEdges))
	for tag := range bcEdges {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		var (
			normals = make(map[int][3]float64)
			order   []int
		)
		for _, be := range bcEdges[tag] {
			var (
				a, b = be[0], be[1]
				key  = [2]int{a, b}
			)
			if a > b {
				key = [2]int{b, a}
			}
			opp, ok := opposite[key]
			if !ok {
				panic(fmt.Errorf("marker %s edge %v is not a triangle edge", tag, be))
			}
			var (
				ca = t.Points[a].Coord
				cb = t.Points[b].Coord
				co = t.Points[opp].Coord
				n  = [3]float64{cb[1] - ca[1], ca[0] - cb[0]}
			)
			// Flip towards the outside, away from the opposite vertex
			if n[0]*(co[0]-ca[0])+n[1]*(co[1]-ca[1]) > 0 {
				n[0], n[1] = -n[0], -n[1]
			}
			for _, v := range be {
				if _, seen := normals[v]; !seen {
					order = append(order, v)
				}
				acc := normals[v]
				acc[0] += 0.5 * n[0]
				acc[1] += 0.5 * n[1]
				normals[v] = acc
			}
		}
		m := Marker{Tag: strings.Trim(tag, " ")}
		for _, v := range order {
			m.Vertices = append(m.Vertices, Vertex{
				Point:          v,
				Normal:         normals[v],
				NormalNeighbor: normalNeighbor(t, v, normals[v], neighbors[v]),
			})
		}
		t.Markers = append(t.Markers, m)
	}
}

// normalNeighbor picks the edge neighbor whose direction is closest to
// the inward normal of one boundary vertex.
func normalNeighbor(t *Topology, v int, outward [3]float64, nbs []int) (best int) {
	if len(nbs) == 0 {
		panic(fmt.Errorf("boundary point %d has no edge neighbors", v))
	}
	var (
		bestCos = math.Inf(-1)
		area    = Norm(2, outward)
		cv      = t.Points[v].Coord
	)
	best = nbs[0]
	for _, nb := range nbs {
		var (
			cn   = t.Points[nb].Coord
			dist = Distance(2, cv, cn)
			cos  float64
		)
		if dist == 0 || area == 0 {
			continue
		}
		for d := 0; d < 2; d++ {
			cos -= (cn[d] - cv[d]) / dist * outward[d] / area
		}
		if cos > bestCos {
			bestCos = cos
			best = nb
		}
	}
	return
}

func getToken(reader *bufio.Reader) (token string) {
	line := getLineNoComments(reader)
	ind := strings.Index(line, "=")
	if ind < 0 {
		err := fmt.Errorf("badly formed input line [%s], should have an =", line)
		panic(err)
	}
	token = line[ind+1:]
	return
}

func readLabel(reader *bufio.Reader) (label string) {
	var (
		err error
	)
	token := getToken(reader)
	if _, err = fmt.Sscanf(token, "%s", &label); err != nil {
		err = fmt.Errorf("unable to read label from token: [%s]", token)
		panic(err)
	}
	label = strings.Trim(label, " ")
	return
}

func readNumber(reader *bufio.Reader) (num int) {
	var (
		err error
	)
	token := getToken(reader)
	if _, err = fmt.Sscanf(token, "%d", &num); err != nil {
		err = fmt.Errorf("unable to read number from token: [%s]", token)
		panic(err)
	}
	return
}

func getLineNoComments(reader *bufio.Reader) (line string) {
	for {
		line = strings.Trim(getLine(reader), " ")
		ind := strings.Index(line, "%")
		if ind != 0 {
			return
		}
	}
}

func getLine(reader *bufio.Reader) (line string) {
	var err error
	if line, err = reader.ReadString('\n'); err != nil && err != io.EOF {
		panic(err)
	}
	return strings.TrimRight(line, "\n")
}
