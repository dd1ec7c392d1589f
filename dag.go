package main

// BatchNode is one gate of a batch as a node in the dependency DAG. A gate
// depends on the most recent earlier gate touching each of its qubits; the
// DAG therefore encodes exactly the ordering constraints the router must
// preserve.
type BatchNode struct {
	Index int
	Gate  InternalGate
	Deps  []int
}

// BatchDAG is the dependency view of a batch, used by the greedy router for
// placement and by the inspector to lay the batch out in parallel layers.
type BatchDAG struct {
	Nodes []*BatchNode
}

// NewBatchDAG builds the dependency DAG for a batch. Batches are already in
// submission order, so every dependency points backwards.
func NewBatchDAG(batch []InternalGate) *BatchDAG {
	dag := &BatchDAG{Nodes: make([]*BatchNode, 0, len(batch))}
	lastOnQubit := make(map[int]int)
	for i, g := range batch {
		node := &BatchNode{Index: i, Gate: g}
		seen := make(map[int]bool)
		for _, q := range g.Qubits {
			if prev, ok := lastOnQubit[q]; ok && !seen[prev] {
				node.Deps = append(node.Deps, prev)
				seen[prev] = true
			}
		}
		for _, q := range g.Qubits {
			lastOnQubit[q] = i
		}
		dag.Nodes = append(dag.Nodes, node)
	}
	return dag
}

// Layers groups node indices into parallel layers: a node sits one layer
// after its deepest dependency. Gates in the same layer touch disjoint
// qubits and could execute simultaneously.
func (dag *BatchDAG) Layers() [][]int {
	depth := make([]int, len(dag.Nodes))
	maxDepth := -1
	for _, node := range dag.Nodes {
		d := 0
		for _, dep := range node.Deps {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[node.Index] = d
		if d > maxDepth {
			maxDepth = d
		}
	}
	layers := make([][]int, maxDepth+1)
	for _, node := range dag.Nodes {
		layers[depth[node.Index]] = append(layers[depth[node.Index]], node.Index)
	}
	return layers
}

// FirstUse returns the qubit indices of the batch in order of first
// appearance, multi-qubit gates contributing their operands in gate order.
func (dag *BatchDAG) FirstUse() []int {
	var order []int
	seen := make(map[int]bool)
	for _, node := range dag.Nodes {
		for _, q := range node.Gate.Qubits {
			if !seen[q] {
				seen[q] = true
				order = append(order, q)
			}
		}
	}
	return order
}
