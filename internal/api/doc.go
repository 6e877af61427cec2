// Package api handles incoming HTTP requests: payload decoding and
// validation, invoking the application services, mapping service errors to
// HTTP status codes, and shaping JSON responses. It keeps transport concerns
// out of the services underneath it.
package api
