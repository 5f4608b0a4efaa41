// Package llms defines the provider-neutral message model and the Model
// interface used by the conversation loop.
//
// Provider adapters live in the subpackages (openai, anthropic, bedrock,
// googleai). Adapters translate transport failures into the sentinel errors
// ErrRateLimited and ErrTimeout, and StepLimiter enforces the per-turn
// recursion limit by returning ErrTurnLimitExceeded.
package llms
