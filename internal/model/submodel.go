// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-cosim.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package model

import (
	"fmt"
	"math"

	"github.com/ClusterCockpit/cc-cosim/internal/component"
	"github.com/ClusterCockpit/cc-cosim/internal/dependency"
	"github.com/ClusterCockpit/cc-cosim/pkg/schema"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Node is one evaluation unit: an element together with one of its output
// groups.
type Node struct {
	Comp  component.Component
	Group int
}

// SubModel is the ordered evaluation list the drivers run, plus the unique
// element set it covers (in evaluation order).
type SubModel struct {
	EvaluationList []*Node
	Components     []component.Component
}

// IsElement reports whether the element belongs to this sub-model.
func (s *SubModel) IsElement(comp component.Component) bool {
	for _, c := range s.Components {
		if c == comp {
			return true
		}
	}
	return false
}

func componentsOf(eval []*Node) []component.Component {
	var comps []component.Component
	for _, node := range eval {
		found := false
		for _, c := range comps {
			if c == node.Comp {
				found = true
				break
			}
		}
		if !found {
			comps = append(comps, node.Comp)
		}
	}
	return comps
}

// SubModelGenerator builds the (element, out group) node map and derives
// ordered sub-models from the dependency matrices of the elements.
type SubModelGenerator struct {
	model *Model
	nodes []*Node
}

func NewSubModelGenerator(m *Model) *SubModelGenerator {
	return &SubModelGenerator{model: m}
}

func (g *SubModelGenerator) fillNodeMap(depType dependency.Type) {
	g.nodes = g.nodes[:0]
	for _, comp := range g.model.Components {
		numGroups := comp.NumOutGroups()
		if depType == dependency.InitialDependencies {
			numGroups = comp.NumInitialOutGroups()
			if comp.PartOfInitCalculation() && numGroups == 0 {
				// dummy group so the element's internal values are evaluated
				// during initialization; it depends on all inputs
				numGroups = 1
			}
		}
		for group := 0; group < numGroups; group++ {
			g.nodes = append(g.nodes, &Node{Comp: comp, Group: group})
		}
	}
}

func (g *SubModelGenerator) nodeID(comp component.Component, group int) (int, bool) {
	for i, node := range g.nodes {
		if node.Comp == comp && node.Group == group {
			return i, true
		}
	}
	return 0, false
}

// buildGraph creates the effective dependency graph over the node map.
// Edges run source -> target; decoupled connections contribute none.
func (g *SubModelGenerator) buildGraph(depType dependency.Type) (*dependency.Graph, error) {
	graph := dependency.NewGraph(len(g.nodes))

	for targetID, node := range g.nodes {
		targetComp := node.Comp
		targetGroup := node.Group
		db := targetComp.Databus()

		var matrix *dependency.Matrix
		if depType == dependency.InitialDependencies {
			matrix = targetComp.InitialDependencies()
		}
		if matrix == nil {
			matrix = targetComp.Dependencies()
		}

		dummyGroup := depType == dependency.InitialDependencies && targetComp.NumInitialOutGroups() == 0

		for k := 0; k < db.NumInChannels(); k++ {
			dep := dependency.Dependent
			if !dummyGroup {
				var err error
				dep, err = matrix.Get(k, targetGroup)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", targetComp.Name(), err)
				}
			}

			conn := db.InPort(k).Connection()

			if depType == dependency.InitialDependencies && db.InInfo(k).Initial != nil {
				// exact initial inputs do not constrain the initial order
				// when their connection is decoupled or absent
				if conn == nil || conn.IsDecoupled() {
					dep = dependency.Independent
				}
			}

			if dep == dependency.Independent {
				continue
			}

			if conn == nil || conn.IsDecoupled() || !conn.IsActiveDependency() {
				continue
			}
			if conn.DecoupleType() != schema.DecoupleNever && conn.DecoupleType() != schema.DecoupleIfNeeded {
				continue
			}

			sourceComp := g.model.Components[conn.SourceComp]
			var sourceGroup int
			if depType == dependency.InitialDependencies {
				sourceGroup = sourceComp.InitialOutGroup(conn.SourcePort)
			} else {
				sourceGroup = sourceComp.OutGroup(conn.SourcePort)
			}

			sourceID, ok := g.nodeID(sourceComp, sourceGroup)
			if !ok {
				// source is not part of this sub-model
				continue
			}

			if depType == dependency.InitialDependencies && db.NumOutChannels() > 0 {
				outInfo := db.OutInfo(targetGroup)
				if outInfo.InitialIsExact && outInfo.Initial != nil {
					continue
				}
			}

			graph.AddEdge(sourceID, targetID)
			cclog.Debugf("[MODEL]> (%s,%d) -> (%s,%d)", sourceComp.Name(), sourceGroup, targetComp.Name(), targetGroup)
		}
	}

	return graph, nil
}

// decoupleLoops selects one connection bundle per loop and marks it
// decoupled. Bundles with a source sequence number above the target's win
// outright; bundles containing a never-decouple connection are discarded;
// otherwise the maximum if-needed priority decides.
func (g *SubModelGenerator) decoupleLoops(order *dependency.OrderedNodes) error {
	for _, group := range order.Groups {
		if !group.IsLoop {
			continue
		}

		loopComps := componentsOf(g.nodesOf(group.Nodes))

		bestPriority := -1
		var bestFrom, bestTo component.Component

		for _, from := range loopComps {
			if bestPriority == math.MaxInt32 {
				break
			}
			for _, to := range loopComps {
				conns := g.model.ConnectionsBetween(from, to)
				priority := -1

				for _, conn := range conns {
					if conn.IsDecoupled() {
						continue
					}
					if from.SequenceNumber() > to.SequenceNumber() {
						// ordering by elements takes priority
						priority = math.MaxInt32
						break
					} else if conn.DecoupleType() == schema.DecoupleIfNeeded {
						if conn.DecouplePriority() > priority {
							priority = conn.DecouplePriority()
						}
					} else if conn.DecoupleType() == schema.DecoupleNever {
						priority = -1
						break
					}
				}

				if priority > bestPriority {
					bestPriority = priority
					bestFrom, bestTo = from, to
				}
				if bestPriority == math.MaxInt32 {
					break
				}
			}
		}

		if bestFrom == nil {
			return fmt.Errorf("model: no connection can be decoupled")
		}

		for _, conn := range g.model.ConnectionsBetween(bestFrom, bestTo) {
			if conn.IsDecoupled() {
				continue
			}
			cclog.Infof("Decoupling connection %s", conn)
			conn.SetDecoupled()
		}
	}

	return nil
}

func (g *SubModelGenerator) nodesOf(ids []int) []*Node {
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

func (g *SubModelGenerator) order(depType dependency.Type) (*dependency.OrderedNodes, error) {
	graph, err := g.buildGraph(depType)
	if err != nil {
		return nil, err
	}
	return dependency.Tarjan(graph), nil
}

// CreateOrderedSubModel orders the runtime graph, breaking loops until the
// effective graph is acyclic.
func (g *SubModelGenerator) CreateOrderedSubModel() (*SubModel, error) {
	g.fillNodeMap(dependency.RuntimeDependencies)

	for {
		order, err := g.order(dependency.RuntimeDependencies)
		if err != nil {
			return nil, err
		}

		if !order.HasLoops() {
			g.printNodeMap(order)
			return g.subModelFromOrder(order), nil
		}

		if err := g.decoupleLoops(order); err != nil {
			return nil, err
		}
		// decoupled edges are gone; recompute the ordering
	}
}

// CreateInitialSubModel orders the graph under the initial dependencies.
// Loops surviving decoupling are a config error here.
func (g *SubModelGenerator) CreateInitialSubModel() (*SubModel, error) {
	g.fillNodeMap(dependency.InitialDependencies)

	for {
		order, err := g.order(dependency.InitialDependencies)
		if err != nil {
			return nil, err
		}

		if !order.HasLoops() {
			return g.subModelFromOrder(order), nil
		}

		if err := g.decoupleLoops(order); err != nil {
			return nil, err
		}
	}
}

func (g *SubModelGenerator) subModelFromOrder(order *dependency.OrderedNodes) *SubModel {
	var eval []*Node
	for _, group := range order.Groups {
		for _, id := range group.Nodes {
			eval = append(eval, g.nodes[id])
		}
	}

	return &SubModel{
		EvaluationList: eval,
		Components:     componentsOf(eval),
	}
}

func (g *SubModelGenerator) printNodeMap(order *dependency.OrderedNodes) {
	pos := 1
	for _, group := range order.Groups {
		for _, id := range group.Nodes {
			node := g.nodes[id]
			cclog.Infof(" %2d. (%s, %d)", pos, node.Comp.Name(), node.Group)
			pos++
		}
	}
}
