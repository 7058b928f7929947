package types

import "errors"

var (
	// ErrConfiguration is fatal at startup: a credential required by the selected mode is missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrIndexUnavailable means the vector collections cannot be reached or do not exist.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrToolInvocation covers malformed tool arguments, unknown tools and provider failures.
	ErrToolInvocation = errors.New("tool invocation failed")
	// ErrUpstreamModel is a failed language-model call.
	ErrUpstreamModel = errors.New("upstream model error")
	// ErrAborted is a client cancellation. It is not reported as an error.
	ErrAborted = errors.New("aborted")

	ErrThreadBusy = errors.New("thread is busy")
	ErrNotFound   = errors.New("not found")
)
