package facematch

import (
	"context"
	"time"
)

// Status classifies the outcome of processing one frame.
type Status string

// Frame processing outcomes.
const (
	StatusNoFace       Status = "NO_FACE"
	StatusFaceDetected Status = "FACE_DETECTED"
	StatusMultiFaces   Status = "MULTIPLE_FACES"
	StatusMatched      Status = "FACE_MATCHED"
	StatusUnknownFace  Status = "UNKNOWN_FACE"
	StatusCameraError  Status = "CAMERA_ERROR"
)

// Observation is the result of one pipeline pass: the frame outcome
// plus, when matched, the identified user.
type Observation struct {
	Status     Status
	FaceCount  int
	UserID     int64
	Confidence float64
	FrameSeq   uint64
	ObservedAt time.Time
}

// Pipeline runs one frame through detection and identification.
// Exactly one face must be present for identification to run; with
// several faces in view the frame is rejected so a bystander cannot
// piggy-back on someone else's match.
type Pipeline struct {
	buffer   *FrameBuffer
	detector Detector
	index    *Index
	logger   Logger
}

// NewPipeline creates a recognition pipeline.
func NewPipeline(buffer *FrameBuffer, detector Detector, index *Index) *Pipeline {
	return &Pipeline{
		buffer:   buffer,
		detector: detector,
		index:    index,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the pipeline.
func (p *Pipeline) SetLogger(logger Logger) {
	p.logger = logger
}

// Process takes the latest frame and classifies it. Never returns an
// error: camera and detector failures map to StatusCameraError so the
// calling loop treats them like any other non-match.
func (p *Pipeline) Process(ctx context.Context) Observation {
	obs := Observation{ObservedAt: time.Now()}

	frame, err := p.buffer.Latest()
	if err != nil {
		obs.Status = StatusCameraError
		return obs
	}
	obs.FrameSeq = frame.Seq

	faces, err := p.detector.Detect(frame)
	if err != nil {
		p.logger.Warn("face detection failed", "frame", frame.Seq, "error", err)
		obs.Status = StatusCameraError
		return obs
	}
	obs.FaceCount = len(faces)

	switch {
	case len(faces) == 0:
		obs.Status = StatusNoFace
		return obs
	case len(faces) > 1:
		obs.Status = StatusMultiFaces
		return obs
	}

	face := faces[0]
	if len(face.Embedding) == 0 {
		obs.Status = StatusFaceDetected
		return obs
	}

	match, ok := p.index.Best(ctx, face.Embedding)
	if !ok {
		obs.Status = StatusUnknownFace
		return obs
	}

	obs.Status = StatusMatched
	obs.UserID = match.UserID
	obs.Confidence = match.Confidence
	return obs
}
