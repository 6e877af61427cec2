// Package gemini implements the generation interfaces on top of Google's
// Gemini and Imagen APIs.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the application's domain logic to Google's external generative
// services. It translates between the application's domain models and the
// genai API without exposing the details of the external service to the
// core application.
//
// Key components:
//
// 1. NarrativeGenerator:
//   - Implements generation.NarrativeGenerator
//   - Prompts a Gemini text model for a titled, scene-by-scene narrative
//   - Parses and validates the structured JSON response
//
// 2. ImageGenerator:
//   - Implements generation.ImageGenerator
//   - Illustrates scenes with an Imagen model
//   - Walks an ordered ladder of fallback prompts and finally renders a
//     deterministic placeholder, so it never returns an error
//
// 3. Prompt Management:
//   - Builds system and user prompts for narrative generation
//   - Expands character and background descriptors into scene image
//     prompts so the cast looks identical from page to page
//
// 4. Error Handling:
//   - Retries transient provider errors with exponential backoff
//   - Translates API errors to generation package errors
//   - Surfaces safety-filter rejections as generation.ErrContentBlocked
package gemini
