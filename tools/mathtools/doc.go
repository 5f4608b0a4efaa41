// Package mathtools provides the deterministic math tool set of the tutor agent.
//
// Every tool returns a tools.Result with the operation name, the rendered
// expression, the numeric result and a step trace ending with the final result.
// Division by zero, square root of a negative number and unsupported equations
// are reported as domain errors.
package mathtools
