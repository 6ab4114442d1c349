package pipeline

import (
	"fmt"
	"slices"
	"strings"
)

// Plan resolves an execution order for stages.
//
// A stage runs after every stage producing one of its inputs. Among stages
// whose inputs are all satisfied, declaration order wins, so a graph that
// is already declared in order plans to itself.
//
// Plan rejects:
//   - two stages with the same name
//   - two stages producing the same snapshot
//   - inputs no stage produces
//   - dependency cycles (reported with the cycle path)
func Plan(stages []Stage) ([]Stage, error) {
	names := make(map[string]bool, len(stages))
	producer := make(map[string]int)
	for i, st := range stages {
		if names[st.Name] {
			return nil, newStageError(ErrCodeDuplicateOutput, st.Name, "duplicate stage name", nil)
		}
		names[st.Name] = true
		for _, out := range st.Outputs {
			if j, dup := producer[out]; dup {
				return nil, newStageError(ErrCodeDuplicateOutput, st.Name,
					fmt.Sprintf("snapshot %q already produced by stage %q", out, stages[j].Name), nil)
			}
			producer[out] = i
		}
	}

	// deps[i] lists the stages i depends on, edges[j] the stages depending on j.
	deps := make([][]int, len(stages))
	edges := make([][]int, len(stages))
	for i, st := range stages {
		for _, in := range st.Inputs {
			j, ok := producer[in]
			if !ok {
				return nil, newStageError(ErrCodeUnresolvedInput, st.Name,
					fmt.Sprintf("no stage produces input %q", in), nil)
			}
			if !slices.Contains(deps[i], j) {
				deps[i] = append(deps[i], j)
				edges[j] = append(edges[j], i)
			}
		}
	}

	indegree := make([]int, len(stages))
	for i := range stages {
		indegree[i] = len(deps[i])
	}

	ordered := make([]Stage, 0, len(stages))
	done := make([]bool, len(stages))
	for len(ordered) < len(stages) {
		next := -1
		for i := range stages {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			path := findCycle(stages, deps, done)
			return nil, newStageError(ErrCodeCycle, path[0],
				"stage dependencies form a cycle: "+strings.Join(path, " → "), nil)
		}
		done[next] = true
		ordered = append(ordered, stages[next])
		for _, k := range edges[next] {
			indegree[k]--
		}
	}
	return ordered, nil
}

// findCycle returns a cycle path among the unscheduled stages using Tarjan's
// strongly connected components. The first stage is repeated at the end.
func findCycle(stages []Stage, deps [][]int, done []bool) []string {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		found   []int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps[v] {
			if done[w] {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if found == nil && (len(scc) > 1 || slices.Contains(deps[v], v)) {
				found = scc
			}
		}
	}

	// Visit in declaration order so the reported cycle is stable.
	for i := range stages {
		if done[i] {
			continue
		}
		if _, visited := indices[i]; !visited {
			strongConnect(i)
		}
	}
	if found == nil {
		return []string{"?"}
	}
	return cyclePath(stages, deps, found)
}

// cyclePath walks dependency edges inside an SCC back to its start.
func cyclePath(stages []Stage, deps [][]int, scc []int) []string {
	slices.Sort(scc)
	start := scc[0]
	path := []string{stages[start].Name}
	visited := map[int]bool{start: true}
	current := start
	for {
		next := -1
		for _, w := range deps[current] {
			if slices.Contains(scc, w) && (w == start || !visited[w]) {
				next = w
				break
			}
		}
		if next < 0 {
			break
		}
		path = append(path, stages[next].Name)
		if next == start {
			break
		}
		visited[next] = true
		current = next
	}
	return path
}
