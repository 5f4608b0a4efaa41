// Package assistants provides the tool-calling conversation loop.
//
// A Loop alternates between asking the model for the next message and executing
// the tool calls the model requested, until the model answers without tool calls.
// Tool calls of one response are executed sequentially in the order listed,
// every call is answered by exactly one tool message.
// Loop transitions are reported to a Callback.
package assistants
