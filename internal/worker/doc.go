// Package worker contains the story generation pipeline that runs after
// a story's narrative has been written: per-scene asset production, the
// batched background worker that drives all remaining scenes to a
// terminal state, and cover image generation.
//
// The design tolerates partial failure at every level. A scene keeps
// going when its narration degrades, a batch keeps going when a scene
// fails, and a story completes even when some of its scenes failed. Only
// a broken persistence path fails the story itself.
package worker
