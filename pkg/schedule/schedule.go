// Package schedule deals with ordering jobs whose "needs" edges form a
// dependency graph.
package schedule

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"

	"github.com/matrixci/matrixci/pkg/matrix"
)

// Order arranges jobs in to execution waves: every job in a wave has all of
// its needs satisfied by earlier waves, so jobs within a wave may run
// concurrently.  Jobs without needs land in the first wave.  Within a wave,
// expansion order is preserved.
//
// A need on an unknown job, or a dependency cycle, is an error.
func Order(jobs []matrix.Job) ([][]matrix.Job, error) {
	byName := make(map[string]matrix.Job, len(jobs))

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, job := range jobs {
		if err := g.AddVertex(job.Name); err != nil {
			return nil, fmt.Errorf("job %q: %w", job.Name, err)
		}
		byName[job.Name] = job
	}
	for _, job := range jobs {
		for _, need := range job.Needs {
			if _, ok := byName[need]; !ok {
				return nil, fmt.Errorf("job %q needs unknown job %q", job.Name, need)
			}
			err := g.AddEdge(need, job.Name)
			switch {
			case err == nil:
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return nil, fmt.Errorf("job %q needs %q: dependency cycle", job.Name, need)
			case errors.Is(err, graph.ErrEdgeAlreadyExists):
				// Duplicate needs entries are harmless.
			default:
				return nil, fmt.Errorf("job %q needs %q: %w", job.Name, need, err)
			}
		}
	}

	// The cycle check above means depth assignment terminates; depth is
	// 1 + the deepest need.
	depths := make(map[string]int, len(jobs))
	var depthOf func(name string) int
	depthOf = func(name string) int {
		if d, ok := depths[name]; ok {
			return d
		}
		d := 0
		for _, need := range byName[name].Needs {
			if nd := depthOf(need) + 1; nd > d {
				d = nd
			}
		}
		depths[name] = d
		return d
	}

	maxDepth := 0
	for _, job := range jobs {
		if d := depthOf(job.Name); d > maxDepth {
			maxDepth = d
		}
	}

	waves := make([][]matrix.Job, maxDepth+1)
	for _, job := range jobs {
		d := depths[job.Name]
		waves[d] = append(waves[d], job)
	}
	return waves, nil
}
