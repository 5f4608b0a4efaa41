// Package tools defines the Tool interface for LLM agents, the registry that resolves
// tools by name, and the invokers that validate arguments, run tools in process or
// through a tool server, and render the structured Result for the model.
package tools
