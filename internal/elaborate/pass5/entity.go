package pass5

import (
	"fmt"
	"sort"
	"strings"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
	"tenor/internal/elaborate/pass2"
)

func validateEntity(c ast.RawConstruct, _ *pass2.Index) error {
	stateSet := make(map[string]bool, len(c.States))
	for _, s := range c.States {
		stateSet[s] = true
	}

	if !stateSet[c.Initial] {
		return elaborate.New(5, c.Prov.File, c.InitialLine,
			fmt.Sprintf("initial state '%s' is not declared in states: [%s]", c.Initial, strings.Join(c.States, ", "))).
			WithConstruct("Entity", c.ID).WithField("initial")
	}

	for _, tr := range c.Transitions {
		if !stateSet[tr.From] {
			return elaborate.New(5, c.Prov.File, tr.Line,
				fmt.Sprintf("transition endpoint '%s' is not declared in states: [%s]", tr.From, strings.Join(c.States, ", "))).
				WithConstruct("Entity", c.ID).WithField("transitions")
		}
		if !stateSet[tr.To] {
			return elaborate.New(5, c.Prov.File, tr.Line,
				fmt.Sprintf("transition endpoint '%s' is not declared in states: [%s]", tr.To, strings.Join(c.States, ", "))).
				WithConstruct("Entity", c.ID).WithField("transitions")
		}
	}
	return nil
}

type parentEdge struct {
	parent string
	line   uint32
	file   string
}

func validateEntityDAG(constructs []ast.RawConstruct, _ *pass2.Index) error {
	parents := make(map[string]parentEdge)
	for _, c := range constructs {
		if c.Kind != ast.KindEntity || c.Parent == nil {
			continue
		}
		line := c.Prov.Line
		if c.ParentLine != nil {
			line = *c.ParentLine
		}
		parents[c.ID] = parentEdge{parent: *c.Parent, line: line, file: c.Prov.File}
	}

	ids := make([]string, 0, len(parents))
	for id := range parents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, start := range ids {
		visited := map[string]bool{start: true}
		cur := start
		for {
			edge, ok := parents[cur]
			if !ok {
				break
			}
			if visited[edge.parent] {
				path := []string{cur}
				node := cur
				for {
					e, ok := parents[node]
					if !ok {
						break
					}
					path = append(path, e.parent)
					if e.parent == cur {
						break
					}
					node = e.parent
				}
				return elaborate.New(5, edge.file, edge.line,
					fmt.Sprintf("entity hierarchy cycle detected: %s", strings.Join(path, " → "))).
					WithConstruct("Entity", cur).WithField("parent")
			}
			visited[edge.parent] = true
			cur = edge.parent
		}
	}
	return nil
}
