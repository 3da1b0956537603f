// Package gemini provides an implementation of the generation.CodeGenerator
// interface that uses Google's Gemini API to produce code artifacts for tasks.
//
// Prompts are rendered from a text/template (a built-in default or a file
// named by llm.prompt_template_path). Responses are reduced to the first
// fenced code block, or the raw text when there is none. Transient API
// failures are retried with exponential backoff; safety blocks and malformed
// responses are returned immediately.
package gemini
