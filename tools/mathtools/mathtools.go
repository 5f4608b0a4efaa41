package mathtools

import (
	"context"
	"fmt"
	"math"

	"github.com/CodeSistency/agentTemplate/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/CodeSistency/agentTemplate", "mathtools")

// ServerName is the name of the tool server hosting the math tools,
// tools are addressed as "math_tools.<tool>".
const ServerName = "math_tools"

// Tool names
const (
	Add           = "add"
	Subtract      = "subtract"
	Multiply      = "multiply"
	Divide        = "divide"
	Power         = "power"
	SquareRoot    = "square_root"
	SolveEquation = "solve_equation"
)

// PairInput is the input of the binary arithmetic tools
type PairInput struct {
	A float64 `json:"a" jsonschema:"description=The first number"`
	B float64 `json:"b" jsonschema:"description=The second number"`
}

// SubtractInput is the input of the subtract tool
type SubtractInput struct {
	A float64 `json:"a" jsonschema:"description=The first number"`
	B float64 `json:"b" jsonschema:"description=The number to subtract"`
}

// DivideInput is the input of the divide tool
type DivideInput struct {
	A float64 `json:"a" jsonschema:"description=The numerator"`
	B float64 `json:"b" jsonschema:"description=The denominator (cannot be zero)"`
}

// PowerInput is the input of the power tool
type PowerInput struct {
	Base     float64 `json:"base" jsonschema:"description=The base number"`
	Exponent float64 `json:"exponent" jsonschema:"description=The exponent"`
}

// SquareRootInput is the input of the square_root tool
type SquareRootInput struct {
	Number float64 `json:"number" jsonschema:"description=The number to find the square root of (must be non-negative)"`
}

// EquationInput is the input of the solve_equation tool
type EquationInput struct {
	Equation string `json:"equation" jsonschema:"description=The equation to solve\\, e.g.\\, '2x + 3 = 7'"`
}

// Tools returns the math tools in registration order
func Tools() []tools.Tool {
	return []tools.Tool{
		tools.MustFunctionTool(Add,
			"Adds two numbers and returns the result with steps.",
			func(_ context.Context, in *PairInput) (*tools.Result, error) {
				return AddNumbers(in.A, in.B), nil
			}),
		tools.MustFunctionTool(Subtract,
			"Subtracts the second number from the first and returns the result with steps.",
			func(_ context.Context, in *SubtractInput) (*tools.Result, error) {
				return SubtractNumbers(in.A, in.B), nil
			}),
		tools.MustFunctionTool(Multiply,
			"Multiplies two numbers and returns the result with steps.",
			func(_ context.Context, in *PairInput) (*tools.Result, error) {
				return MultiplyNumbers(in.A, in.B), nil
			}),
		tools.MustFunctionTool(Divide,
			"Divides the first number by the second and returns the result with steps.",
			func(_ context.Context, in *DivideInput) (*tools.Result, error) {
				return DivideNumbers(in.A, in.B)
			}),
		tools.MustFunctionTool(Power,
			"Raises a number to a power and returns the result with steps.",
			func(_ context.Context, in *PowerInput) (*tools.Result, error) {
				return RaisePower(in.Base, in.Exponent), nil
			}),
		tools.MustFunctionTool(SquareRoot,
			"Calculates the square root of a number and returns the result with steps.",
			func(_ context.Context, in *SquareRootInput) (*tools.Result, error) {
				return SquareRootOf(in.Number)
			}),
		tools.MustFunctionTool(SolveEquation,
			"Solves a simple linear equation in the form 'ax + b = c' and returns the solution with steps.",
			func(ctx context.Context, in *EquationInput) (*tools.Result, error) {
				res := Solve(in.Equation)
				if res.Failed() {
					logger.ContextKV(ctx, xlog.DEBUG,
						"status", "unsupported_equation",
						"equation", in.Equation,
						"err", res.Error,
					)
				}
				return res, nil
			}),
	}
}

// NewRegistry returns a registry with the math tools
func NewRegistry() *tools.Registry {
	r, err := tools.NewRegistry(Tools()...)
	if err != nil {
		// names are constants
		panic(err)
	}
	return r
}

// AddNumbers returns a + b
func AddNumbers(a, b float64) *tools.Result {
	return binary("addition", "%s + %s", "Step 1: Add %s and %s", a, b, a+b)
}

// SubtractNumbers returns a - b
func SubtractNumbers(a, b float64) *tools.Result {
	return binary("subtraction", "%s - %s", "Step 1: Subtract %[2]s from %[1]s", a, b, a-b)
}

// MultiplyNumbers returns a × b
func MultiplyNumbers(a, b float64) *tools.Result {
	return binary("multiplication", "%s × %s", "Step 1: Multiply %s by %s", a, b, a*b)
}

// DivideNumbers returns a ÷ b, b must not be zero
func DivideNumbers(a, b float64) (*tools.Result, error) {
	if b == 0 {
		return nil, tools.NewDomainError("Cannot divide by zero")
	}
	return binary("division", "%s ÷ %s", "Step 1: Divide %s by %s", a, b, a/b), nil
}

// RaisePower returns base^exponent.
// The result may be non-finite, the executor rejects it.
func RaisePower(base, exponent float64) *tools.Result {
	return binary("exponentiation", "%s^%s", "Step 1: Raise %s to the power of %s", base, exponent, math.Pow(base, exponent))
}

// SquareRootOf returns √n, n must not be negative
func SquareRootOf(n float64) (*tools.Result, error) {
	if n < 0 {
		return nil, tools.NewDomainError("Cannot calculate square root of a negative number")
	}
	num := tools.FormatNumber(n)
	v := math.Sqrt(n)
	expr := "√" + num
	return trace("square_root", expr, v, "Step 1: Find the square root of "+num), nil
}

func binary(op, exprFormat, stepFormat string, a, b, v float64) *tools.Result {
	sa, sb := tools.FormatNumber(a), tools.FormatNumber(b)
	return trace(op, fmt.Sprintf(exprFormat, sa, sb), v, fmt.Sprintf(stepFormat, sa, sb))
}

// trace builds the standard three step trace
func trace(op, expr string, v float64, first string) *tools.Result {
	s := tools.FormatNumber(v)
	return tools.NewResult(op, expr, v,
		first,
		expr+" = "+s,
		"Final result: "+s,
	)
}
