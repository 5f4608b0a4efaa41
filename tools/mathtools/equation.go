package mathtools

import (
	"strconv"
	"strings"

	"github.com/CodeSistency/agentTemplate/tools"
	"github.com/cockroachdb/errors"
)

// UnsupportedEquationMessage is the message of a failed solve_equation
const UnsupportedEquationMessage = "Failed to solve equation. Make sure it's in a supported format like '2x + 3 = 7'."

// Linear is a parsed "ax + b = c" equation
type Linear struct {
	A, B, C float64
	// Left and Right are the sides with whitespace removed,
	// Term is the "ax" part of the left side.
	Left, Right, Term string
}

// ParseLinear parses "<a>x + <b> = <c>", whitespace is ignored.
// An omitted coefficient is 1, "-x" is -1.
func ParseLinear(equation string) (*Linear, error) {
	parts := strings.Split(strings.Join(strings.Fields(equation), ""), "=")
	if len(parts) != 2 {
		return nil, errors.New("Equation must contain exactly one '='")
	}
	left, right := parts[0], parts[1]
	if !strings.Contains(left, "x") {
		return nil, errors.New("Equation must contain 'x' on the left side")
	}

	term, constant, ok := strings.Cut(left, "+")
	if !ok {
		return nil, errors.New("Unsupported equation format")
	}
	coef, found := strings.CutSuffix(term, "x")
	if !found || strings.Contains(coef, "x") {
		return nil, errors.New("Unsupported equation format")
	}

	eq := &Linear{Left: left, Right: right, Term: term}
	var err error
	switch coef {
	case "":
		eq.A = 1
	case "-":
		eq.A = -1
	default:
		if eq.A, err = parseNumber(coef); err != nil {
			return nil, err
		}
	}
	if eq.A == 0 {
		return nil, errors.New("Coefficient of x must not be zero")
	}
	if eq.B, err = parseNumber(constant); err != nil {
		return nil, err
	}
	if eq.C, err = parseNumber(right); err != nil {
		return nil, err
	}
	return eq, nil
}

// Solution returns x
func (l *Linear) Solution() float64 {
	return (l.C - l.B) / l.A
}

// Solve solves the linear equation, the failure is returned as an error Result
func Solve(equation string) *tools.Result {
	eq, err := ParseLinear(equation)
	if err == nil && !tools.IsFinite(eq.Solution()) {
		err = errors.New("Solution is not a finite number")
	}
	if err != nil {
		return &tools.Result{
			Operation: SolveEquation,
			Equation:  equation,
			Error:     err.Error(),
			Message:   UnsupportedEquationMessage,
		}
	}

	x := eq.Solution()
	a, b, c := tools.FormatNumber(eq.A), tools.FormatNumber(eq.B), tools.FormatNumber(eq.C)
	xs := tools.FormatNumber(x)
	return &tools.Result{
		Operation: SolveEquation,
		Equation:  equation,
		Value:     &x,
		Steps: []string{
			"Step 1: Start with the equation: " + equation,
			"Step 2: Isolate the variable x",
			eq.Left + " = " + eq.Right,
			eq.Term + " = " + c + " - " + b,
			a + "x = " + tools.FormatNumber(eq.C-eq.B),
			"x = (" + c + " - " + b + ") / " + a,
			"x = " + xs,
			"Final solution: x = " + xs,
		},
	}
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !tools.IsFinite(v) {
		return 0, errors.Newf("could not convert string to float: '%s'", s)
	}
	return v, nil
}
