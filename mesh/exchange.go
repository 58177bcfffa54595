package mesh

// FieldExchanger is the halo-exchange primitive consumed by solvers: a
// named per-point field is published with Initiate and guaranteed
// consistent on halo points after Complete. Solvers call the pair
// around every pass that reads neighbor-partition state.
type FieldExchanger interface {
	Initiate(name string, field []float64, nVar int)
	Complete(name string)
}

// LocalExchanger serves a single-partition run where every point is a
// domain point: both calls are no-ops.
type LocalExchanger struct{}

func (LocalExchanger) Initiate(string, []float64, int) {}
func (LocalExchanger) Complete(string)                 {}

// MirrorExchanger serves a partition-split topology within one process:
// each halo point mirrors an owner point, and Complete copies the owner
// block over the halo block. Pairs are {halo, owner} point indices.
type MirrorExchanger struct {
	Pairs [][2]int

	pending map[string]pendingField
}

type pendingField struct {
	field []float64
	nVar  int
}

func NewMirrorExchanger(pairs [][2]int) *MirrorExchanger {
	return &MirrorExchanger{
		Pairs:   pairs,
		pending: make(map[string]pendingField),
	}
}

func (m *MirrorExchanger) Initiate(name string, field []float64, nVar int) {
	m.pending[name] = pendingField{field, nVar}
}

func (m *MirrorExchanger) Complete(name string) {
	pf, ok := m.pending[name]
	if !ok {
		return
	}
	for _, pair := range m.Pairs {
		halo, owner := pair[0], pair[1]
		copy(pf.field[halo*pf.nVar:(halo+1)*pf.nVar],
			pf.field[owner*pf.nVar:(owner+1)*pf.nVar])
	}
	delete(m.pending, name)
}
