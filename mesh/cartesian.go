package mesh

// NewCartesian2D builds the vertex-centered dual mesh of a uniform
// nx by ny grid covering [0,lx] x [0,ly]. Dual faces are halved along
// boundary rows/columns so that the face normals of every control
// volume, boundary faces included, sum to zero exactly.
//
// markerTags order: bottom, right, top, left.
func NewCartesian2D(nx, ny int, lx, ly float64, markerTags [4]string) (t *Topology) {
	var (
		dx = lx / float64(nx-1)
		dy = ly / float64(ny-1)
	)
	t = &Topology{NDim: 2}
	id := func(i, j int) int { return i + j*nx }
	xWeight := func(i int) float64 {
		if i == 0 || i == nx-1 {
			return 0.5
		}
		return 1
	}
	yWeight := func(j int) float64 {
		if j == 0 || j == ny-1 {
			return 0.5
		}
		return 1
	}

	t.Points = make([]Point, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			t.Points[id(i, j)] = Point{
				Coord:  [3]float64{float64(i) * dx, float64(j) * dy},
				Volume: xWeight(i) * dx * yWeight(j) * dy,
				Domain: true,
			}
		}
	}

	for j := 0; j < ny; j++ {
		for i := 0; i < nx-1; i++ {
			t.Edges = append(t.Edges, Edge{
				Points: [2]int{id(i, j), id(i+1, j)},
				Normal: [3]float64{yWeight(j) * dy, 0},
			})
		}
	}
	for j := 0; j < ny-1; j++ {
		for i := 0; i < nx; i++ {
			t.Edges = append(t.Edges, Edge{
				Points: [2]int{id(i, j), id(i, j+1)},
				Normal: [3]float64{0, xWeight(i) * dx},
			})
		}
	}

	bottom := Marker{Tag: markerTags[0]}
	for i := 0; i < nx; i++ {
		bottom.Vertices = append(bottom.Vertices, Vertex{
			Point:          id(i, 0),
			Normal:         [3]float64{0, -xWeight(i) * dx},
			NormalNeighbor: id(i, 1),
		})
	}
	right := Marker{Tag: markerTags[1]}
	for j := 0; j < ny; j++ {
		right.Vertices = append(right.Vertices, Vertex{
			Point:          id(nx-1, j),
			Normal:         [3]float64{yWeight(j) * dy, 0},
			NormalNeighbor: id(nx-2, j),
		})
	}
	top := Marker{Tag: markerTags[2]}
	for i := 0; i < nx; i++ {
		top.Vertices = append(top.Vertices, Vertex{
			Point:          id(i, ny-1),
			Normal:         [3]float64{0, xWeight(i) * dx},
			NormalNeighbor: id(i, ny-2),
		})
	}
	left := Marker{Tag: markerTags[3]}
	for j := 0; j < ny; j++ {
		left.Vertices = append(left.Vertices, Vertex{
			Point:          id(0, j),
			Normal:         [3]float64{-yWeight(j) * dy, 0},
			NormalNeighbor: id(1, j),
		})
	}
	t.Markers = []Marker{bottom, right, top, left}

	t.BuildIncidence()
	return
}
