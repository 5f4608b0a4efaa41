// Package llmfactory provides factories and configuration for LLM model instantiation,
// supporting OpenAI, Perplexity, Anthropic, Gemini and Bedrock providers and model selection strategies.
package llmfactory
