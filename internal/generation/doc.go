// Package generation provides interfaces and types for interacting with
// external AI services for content generation. It abstracts the details of
// narrative, illustration, and narration providers (Gemini, Imagen, OpenAI),
// allowing the pipeline to assemble stories without coupling to specific
// external services.
package generation
