package bridge

import "errors"

// Sentinel errors returned by the facades. Match them with [errors.Is]; the
// returned errors carry provider and model context around the sentinel.
var (
	// ErrProviderNotFound means the selected provider name is not in the
	// registry.
	ErrProviderNotFound = errors.New("bridge: provider not found")

	// ErrClientUnavailable means the adapter returned no chat client for the
	// requested model.
	ErrClientUnavailable = errors.New("bridge: chat client unavailable")

	// ErrGeneratorUnavailable means the adapter returned no embedding
	// generator for the requested model.
	ErrGeneratorUnavailable = errors.New("bridge: embedding generator unavailable")

	// ErrUnsupportedCapability means the selected provider, or the selected
	// options, do not allow the requested operation.
	ErrUnsupportedCapability = errors.New("bridge: unsupported capability")

	// ErrStructuredParse means a structured reply could not be decoded into
	// the requested type.
	ErrStructuredParse = errors.New("bridge: structured response parse failed")

	// ErrUndefinedSimilarity means cosine similarity is undefined for the
	// inputs (empty, mismatched lengths, or a zero-magnitude vector).
	ErrUndefinedSimilarity = errors.New("bridge: similarity undefined")

	// ErrImageTooLarge means an image exceeds the configured size limit.
	ErrImageTooLarge = errors.New("bridge: image too large")

	// ErrInvalidMessage means a caller-supplied message failed validation or
	// an image format is not accepted.
	ErrInvalidMessage = errors.New("bridge: invalid message")
)
