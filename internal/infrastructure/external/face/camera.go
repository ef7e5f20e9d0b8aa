package face

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/edupredict/student-insight/internal/domain/shared"
)

// Frame is one captured image, optionally with a descriptor computed by the
// capturing device.
type Frame struct {
	Image       []byte
	Filename    string
	ContentType string
	Descriptor  Descriptor
}

// Camera hands out exclusive streams. Whoever opens a stream must close it.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields frames until closed.
type Stream interface {
	Capture(ctx context.Context) (Frame, error)
	Close() error
}

// withStream opens cam, runs fn and closes the stream on every return path,
// panics included.
func withStream(ctx context.Context, cam Camera, fn func(Stream) error) (err error) {
	if cam == nil {
		return shared.ErrCameraUnavailable
	}

	stream, err := cam.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCameraUnavailable, err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close stream: %w", cerr)
		}
	}()

	return fn(stream)
}

// ─────────────────────────────────────────────────────────────────────────────
// Upload camera
// ─────────────────────────────────────────────────────────────────────────────

// ErrStreamClosed is returned by Capture after Close.
var ErrStreamClosed = errors.New("face: stream closed")

// maxImageBytes bounds a single uploaded frame.
const maxImageBytes = 8 << 20

// UploadCamera serves a single uploaded image as a one-frame stream. The
// upload body is owned by the stream and closed with it.
type UploadCamera struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	Descriptor  Descriptor

	mu     sync.Mutex
	opened bool
}

// Open implements Camera. An upload can be opened once.
func (c *UploadCamera) Open(_ context.Context) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Body == nil {
		return nil, errors.New("no image uploaded")
	}
	if c.opened {
		return nil, errors.New("upload already consumed")
	}
	c.opened = true
	return &uploadStream{cam: c}, nil
}

type uploadStream struct {
	cam *UploadCamera

	mu       sync.Mutex
	closed   bool
	captured bool
}

func (s *uploadStream) Capture(_ context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Frame{}, ErrStreamClosed
	}
	if s.captured {
		return Frame{}, io.EOF
	}
	s.captured = true

	data, err := io.ReadAll(io.LimitReader(s.cam.Body, maxImageBytes+1))
	if err != nil {
		return Frame{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxImageBytes {
		return Frame{}, shared.NewDomainError("face", "Capture", shared.ErrValueOutOfRange, "image is too large")
	}
	if len(data) == 0 && s.cam.Descriptor == nil {
		return Frame{}, shared.NewDomainError("face", "Capture", shared.ErrEmptyValue, "image is empty")
	}

	return Frame{
		Image:       data,
		Filename:    s.cam.Filename,
		ContentType: s.cam.ContentType,
		Descriptor:  s.cam.Descriptor,
	}, nil
}

func (s *uploadStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.cam.Body.Close()
}
