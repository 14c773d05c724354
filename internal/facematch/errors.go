package facematch

import "errors"

var (
	// ErrNoFrame indicates the frame buffer has never been filled.
	ErrNoFrame = errors.New("facematch: no frame available")

	// ErrSourceClosed indicates the frame source has shut down.
	ErrSourceClosed = errors.New("facematch: frame source closed")

	// ErrDimensionMismatch indicates two embeddings of different sizes
	// were compared.
	ErrDimensionMismatch = errors.New("facematch: embedding dimension mismatch")
)
