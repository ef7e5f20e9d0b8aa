// Package face implements the biometric attendance flow: a client for the
// remote recognition service, a local descriptor matcher, and the verifier
// that owns the capture stream for the duration of one attempt.
package face

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/pkg/circuitbreaker"
	"github.com/edupredict/student-insight/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the face service client.
type ClientConfig struct {
	// BaseURL is the face service base URL, e.g. http://127.0.0.1:8000
	BaseURL string

	// Timeout bounds one HTTP request.
	Timeout time.Duration

	// MaxAttempts is the number of tries per call. One disables retries.
	MaxAttempts int

	Logger *slog.Logger
}

// DefaultClientConfig returns defaults for baseURL.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:     baseURL,
		Timeout:     15 * time.Second,
		MaxAttempts: 1,
	}
}

// Recognition is the outcome of a successful match.
type Recognition struct {
	SubjectID string  `json:"student_id"`
	Distance  float64 `json:"distance,omitempty"`
}

// recognizeResponse is the wire format of /api/face/recognize.
type recognizeResponse struct {
	Status    string `json:"status"`
	StudentID string `json:"student_id"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client calls the remote face recognition service.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a new face service client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	logger := config.Logger.With("component", "face_client")
	breaker := circuitbreaker.FaceServiceBreaker(isServiceFailure, func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	})

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		retrier:    retry.FaceServiceRetrier(config.MaxAttempts),
		breaker:    breaker,
		logger:     logger,
	}
}

// isServiceFailure reports whether err says the service itself misbehaved.
func isServiceFailure(err error) bool {
	return errors.Is(err, shared.ErrFaceServiceFailed) || errors.Is(err, shared.ErrFaceServiceDown)
}

// Recognize sends the frame to /api/face/recognize. A response whose status
// is not "success" yields shared.ErrFaceNotRecognized.
func (c *Client) Recognize(ctx context.Context, frame Frame) (Recognition, error) {
	var out Recognition

	err := c.call(ctx, func(ctx context.Context) error {
		body, contentType, err := encodeMultipart(frame, "capture.jpg", nil)
		if err != nil {
			return retry.Permanent(err)
		}

		status, data, err := c.post(ctx, "/api/face/recognize", contentType, body)
		if err != nil {
			return err
		}
		if status >= http.StatusInternalServerError {
			return retry.Retryable(statusError(status))
		}

		var resp recognizeResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("%w: decode response: %v", shared.ErrFaceServiceFailed, err)
		}
		if resp.Status != "success" || resp.StudentID == "" {
			return shared.ErrFaceNotRecognized
		}

		out = Recognition{SubjectID: resp.StudentID}
		return nil
	})

	return out, err
}

// Enroll registers the frame under subjectID at /api/face/register.
func (c *Client) Enroll(ctx context.Context, subjectID string, frame Frame) error {
	return c.call(ctx, func(ctx context.Context) error {
		body, contentType, err := encodeMultipart(frame, "register.jpg", map[string]string{"student_id": subjectID})
		if err != nil {
			return retry.Permanent(err)
		}

		status, _, err := c.post(ctx, "/api/face/register", contentType, body)
		if err != nil {
			return err
		}
		switch {
		case status >= http.StatusInternalServerError:
			return retry.Retryable(statusError(status))
		case status < 200 || status >= 300:
			return shared.ErrRegistrationRejected
		}
		return nil
	})
}

// call runs op through the circuit breaker and the retrier.
func (c *Client) call(ctx context.Context, op func(ctx context.Context) error) error {
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, op)
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", shared.ErrFaceServiceDown, err)
	}
	return err
}

func (c *Client) post(ctx context.Context, path, contentType string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("face service request", "path", path, "bytes", len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, retry.Permanent(fmt.Errorf("%w: %v", shared.ErrTimeout, ctx.Err()))
		}
		return 0, nil, retry.Retryable(fmt.Errorf("%w: %v", shared.ErrFaceServiceDown, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, retry.Retryable(fmt.Errorf("%w: read response: %v", shared.ErrFaceServiceFailed, err))
	}
	return resp.StatusCode, data, nil
}

func statusError(status int) error {
	return fmt.Errorf("%w: status %d", shared.ErrFaceServiceFailed, status)
}

// encodeMultipart writes the frame as the "file" part followed by fields.
func encodeMultipart(frame Frame, defaultName string, fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := frame.Filename
	if name == "" {
		name = defaultName
	}
	contentType := frame.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(frame.Image); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
