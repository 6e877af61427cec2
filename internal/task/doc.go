// Package task manages keyed background work and its lifecycle.
// It provides a Manager that runs long-lived operations like story asset
// generation off the HTTP request path, guaranteeing at most one live
// task per key and cooperative cancellation when a key is restarted.
package task
