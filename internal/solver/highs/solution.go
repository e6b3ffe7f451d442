package highs

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/efebarandurmaz/ration/internal/model"
	"github.com/efebarandurmaz/ration/internal/solver"
)

const snapTol = 1e-9

// Solution is the part of a HiGHS raw solution file the pipeline needs.
type Solution struct {
	ModelStatus string
	Objective   float64
	HasValues   bool
	Columns     map[string]float64
}

// ParseSolution reads a solution file written with HiGHS' default raw style:
//
//	Model status
//	Optimal
//
//	# Primal solution values
//	Feasible
//	Objective 15.05
//	# Columns 9
//	x0 4
//	...
func ParseSolution(r io.Reader) (*Solution, error) {
	sc := bufio.NewScanner(r)
	sol := &Solution{Columns: make(map[string]float64)}

	expectStatus := false
	columns := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		switch {
		case columns > 0:
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("highs solution: malformed column line %q", line)
			}
			v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err != nil {
				return nil, fmt.Errorf("highs solution: column %s: %w", fields[0], err)
			}
			sol.Columns[strings.Join(fields[:len(fields)-1], " ")] = v
			columns--
			if columns == 0 {
				sol.HasValues = true
			}
		case line == "":
		case expectStatus:
			sol.ModelStatus = line
			expectStatus = false
		case strings.HasPrefix(line, "Model status"):
			if rest, ok := strings.CutPrefix(line, "Model status"); ok && strings.Contains(rest, ":") {
				sol.ModelStatus = strings.TrimSpace(rest[strings.Index(rest, ":")+1:])
			} else {
				expectStatus = true
			}
		case strings.HasPrefix(line, "Objective"):
			fields := strings.Fields(line)
			if len(fields) == 2 {
				if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
					sol.Objective = v
				}
			}
		case strings.HasPrefix(line, "# Columns"):
			fields := strings.Fields(line)
			n, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return nil, fmt.Errorf("highs solution: %q: %w", line, err)
			}
			if sol.HasValues {
				// Dual section repeats "# Columns"; primal values come first.
				continue
			}
			columns = n
			if n == 0 {
				sol.HasValues = true
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("highs solution: %w", err)
	}
	if sol.ModelStatus == "" {
		return nil, fmt.Errorf("highs solution: no model status")
	}
	if columns > 0 {
		return nil, fmt.Errorf("highs solution: truncated column section")
	}
	return sol, nil
}

// Termination maps the HiGHS model status onto the solver classification.
func (s *Solution) Termination() solver.Termination {
	switch strings.ToLower(s.ModelStatus) {
	case "optimal":
		return solver.Optimal
	case "infeasible":
		return solver.Infeasible
	case "unbounded":
		return solver.Unbounded
	default:
		return solver.Other
	}
}

// Result maps column values back onto m's variables.
func (s *Solution) Result(m *model.Model) (*solver.Result, error) {
	res := &solver.Result{
		Termination: s.Termination(),
		Status:      s.ModelStatus,
	}
	if !s.HasValues {
		if res.Termination == solver.Optimal {
			return nil, fmt.Errorf("highs solution: optimal status without primal values")
		}
		return res, nil
	}

	values := make([]float64, m.NumVariables())
	for j := range values {
		v, ok := s.Columns[colName(j)]
		if !ok {
			return nil, fmt.Errorf("highs solution: missing value for %s (%s)", colName(j), m.Variables[j].Name)
		}
		values[j] = v
	}
	solver.Snap(values, snapTol)
	res.Values = values
	res.Objective = m.Objective.Evaluate(values)
	return res, nil
}
