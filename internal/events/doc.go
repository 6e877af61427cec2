// Package events provides a small in-process event bus for requesting
// background work.
//
// Services emit TaskRequestEvents without knowing which handlers will
// pick them up, which keeps the story service decoupled from the task
// scheduling machinery (and breaks what would otherwise be an import
// cycle between the service and worker packages). The cover generation
// flow is the primary consumer: creating a story emits a cover request
// that a handler turns into a background task.
package events
