// Package transport defines the interface for pluggable request transports.
//
// Each transport (HTTP, gRPC) accepts documents in its own wire shape, turns
// them into a job.Request and hands it to the pipeline through a Handler.
// The pipeline doesn't care how requests arrive.
package transport

import (
	"context"

	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/pipeline"
)

// Handler runs a request through the pipeline. The returned state is never
// nil; the transport must call Cleanup on it once the audio has been sent.
type Handler func(ctx context.Context, req *job.Request) (*pipeline.State, error)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests and passes them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// ErrorBody is the wire form of a failed run.
type ErrorBody struct {
	Stage string `json:"stage,omitempty"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// NewErrorBody describes err by its failed stage and error kind.
func NewErrorBody(err error) ErrorBody {
	return ErrorBody{
		Stage: string(pipeline.StageOf(err)),
		Kind:  job.KindOf(err),
		Error: err.Error(),
	}
}
