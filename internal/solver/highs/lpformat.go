package highs

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/efebarandurmaz/ration/internal/model"
)

// colName and rowName keep LP identifiers free of the spaces and punctuation
// found in food names. Columns are mapped back by index.
func colName(j int) string { return "x" + strconv.Itoa(j) }

func rowName(i int, side string) string { return "c" + strconv.Itoa(i) + side }

// WriteLP writes m in CPLEX LP format. Ranged rows are split into a _lo and a
// _hi row; rows with no finite side are omitted.
func WriteLP(w io.Writer, m *model.Model) error {
	if m.NumVariables() == 0 {
		return fmt.Errorf("model has no variables")
	}
	bw := bufio.NewWriter(w)

	if m.Objective.Sense == model.Maximize {
		fmt.Fprintln(bw, "Maximize")
	} else {
		fmt.Fprintln(bw, "Minimize")
	}
	fmt.Fprint(bw, " obj:")
	terms := make([]model.Term, 0, len(m.Objective.Coefs))
	for j, c := range m.Objective.Coefs {
		if c != 0 {
			terms = append(terms, model.Term{Var: j, Coef: c})
		}
	}
	writeExpr(bw, terms)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Subject To")
	for i, c := range m.Constraints {
		switch {
		case c.IsEquality():
			writeRow(bw, rowName(i, ""), c.Terms, "=", c.Lower)
		default:
			if c.HasLower() {
				writeRow(bw, rowName(i, "_lo"), c.Terms, ">=", c.Lower)
			}
			if c.HasUpper() {
				writeRow(bw, rowName(i, "_hi"), c.Terms, "<=", c.Upper)
			}
		}
	}

	fmt.Fprintln(bw, "Bounds")
	for j, v := range m.Variables {
		lower, upper := !math.IsInf(v.Lower, -1), !math.IsInf(v.Upper, 1)
		switch {
		case !lower && !upper:
			fmt.Fprintf(bw, " %s free\n", colName(j))
		case !lower:
			fmt.Fprintf(bw, " -inf <= %s <= %s\n", colName(j), num(v.Upper))
		case upper:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", num(v.Lower), colName(j), num(v.Upper))
		case v.Lower != 0:
			fmt.Fprintf(bw, " %s >= %s\n", colName(j), num(v.Lower))
		}
	}
	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func writeRow(w io.Writer, name string, terms []model.Term, op string, rhs float64) {
	fmt.Fprintf(w, " %s:", name)
	if len(terms) == 0 {
		// LP rows need at least one term.
		terms = []model.Term{{Var: 0, Coef: 0}}
	}
	writeExpr(w, terms)
	fmt.Fprintf(w, " %s %s\n", op, num(rhs))
}

func writeExpr(w io.Writer, terms []model.Term) {
	if len(terms) == 0 {
		fmt.Fprintf(w, " 0 %s", colName(0))
		return
	}
	for k, t := range terms {
		sign, coef := "+", t.Coef
		if coef < 0 {
			sign, coef = "-", -coef
		}
		if k == 0 && sign == "+" {
			fmt.Fprintf(w, " %s %s", num(coef), colName(t.Var))
			continue
		}
		fmt.Fprintf(w, " %s %s %s", sign, num(coef), colName(t.Var))
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
