// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dependency

// NodeGroup is one strongly connected component of the node graph. A group
// of more than one node (or a node with a self edge) is an algebraic loop.
type NodeGroup struct {
	Nodes  []int
	IsLoop bool
}

// OrderedNodes lists the components in reverse topological order of the
// condensation, so every group appears after all groups it depends on.
type OrderedNodes struct {
	Groups []*NodeGroup
}

// HasLoops reports whether any group is a loop.
func (o *OrderedNodes) HasLoops() bool {
	for _, g := range o.Groups {
		if g.IsLoop {
			return true
		}
	}
	return false
}

// Graph is the adjacency structure the analysis runs on. Edge(u, v) == true
// means v depends on u (data flows u -> v).
type Graph struct {
	n   int
	adj [][]bool
}

func NewGraph(n int) *Graph {
	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	return &Graph{n: n, adj: adj}
}

func (g *Graph) AddEdge(u, v int) {
	g.adj[u][v] = true
}

func (g *Graph) HasEdge(u, v int) bool {
	return g.adj[u][v]
}

func (g *Graph) Size() int { return g.n }

// Tarjan runs Tarjan's strongly-connected-components algorithm and returns
// the groups in evaluation order: every group after the groups it depends
// on. The walk runs on the transposed graph so that components finish in
// source-first order and unconnected nodes keep their insertion order. The
// classic recursion is unrolled onto an explicit stack so that large models
// do not exhaust the goroutine stack.
func Tarjan(g *Graph) *OrderedNodes {
	n := g.n

	const undefined = -1
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = undefined
	}

	var (
		counter int
		stack   []int
		order   OrderedNodes
	)

	type frame struct {
		v    int
		succ int
	}

	for root := 0; root < n; root++ {
		if index[root] != undefined {
			continue
		}

		frames := []frame{{v: root}}
		index[root] = counter
		lowlink[root] = counter
		counter++
		stack = append(stack, root)
		onStack[root] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			v := f.v

			advanced := false
			for w := f.succ; w < n; w++ {
				// transposed edge: w -> v in the original graph
				if !g.adj[w][v] {
					continue
				}
				if index[w] == undefined {
					f.succ = w // revisit w's result after the subcall
					index[w] = counter
					lowlink[w] = counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{v: w})
					advanced = true
					break
				}
				if onStack[w] && lowlink[v] > index[w] {
					lowlink[v] = index[w]
				}
				f.succ = w + 1
			}
			if advanced {
				continue
			}

			// v is fully explored
			if lowlink[v] == index[v] {
				group := &NodeGroup{}
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					group.Nodes = append(group.Nodes, w)
					if w == v {
						break
					}
				}
				group.IsLoop = len(group.Nodes) > 1 || g.adj[v][v]
				order.Groups = append(order.Groups, group)
			}

			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].v
				if lowlink[parent] > lowlink[v] {
					lowlink[parent] = lowlink[v]
				}
				// resume the parent after the successor that spawned v
				frames[len(frames)-1].succ++
			}
		}
	}

	return &order
}
