package navmesh

import (
	"container/heap"

	"lobby-crowd/server/internal/geom"
)

type searchNode struct {
	id     int
	g      float64
	f      float64
	index  int
	parent *searchNode
}

type searchQueue []*searchNode

func (q searchQueue) Len() int { return len(q) }

func (q searchQueue) Less(i, j int) bool { return q[i].f < q[j].f }

func (q searchQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *searchQueue) Push(x any) {
	item := x.(*searchNode)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *searchQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// search runs A* over a group's node graph using centroid distances and
// returns the node IDs from start to goal inclusive.
func search(nodes []Node, start, goal int) ([]int, bool) {
	target := nodes[goal].Centroid
	open := &searchQueue{}
	heap.Push(open, &searchNode{id: start, f: geom.Distance(nodes[start].Centroid, target)})
	gScore := map[int]float64{start: 0}
	closed := make(map[int]struct{})

	for open.Len() > 0 {
		current := heap.Pop(open).(*searchNode)
		if _, seen := closed[current.id]; seen {
			continue
		}
		closed[current.id] = struct{}{}
		if current.id == goal {
			var ids []int
			for n := current; n != nil; n = n.parent {
				ids = append(ids, n.id)
			}
			for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
				ids[i], ids[j] = ids[j], ids[i]
			}
			return ids, true
		}

		from := nodes[current.id].Centroid
		for _, next := range nodes[current.id].Neighbours {
			if _, seen := closed[next]; seen {
				continue
			}
			tentative := current.g + geom.Distance(from, nodes[next].Centroid)
			if prev, ok := gScore[next]; ok && prev <= tentative {
				continue
			}
			gScore[next] = tentative
			heap.Push(open, &searchNode{
				id:     next,
				g:      tentative,
				f:      tentative + geom.Distance(nodes[next].Centroid, target),
				parent: current,
			})
		}
	}
	return nil, false
}
