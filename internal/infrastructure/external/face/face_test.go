package face

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupredict/student-insight/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type trackingBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackingBody) Close() error {
	b.closed.Store(true)
	return nil
}

func upload(data string) (*UploadCamera, *trackingBody) {
	body := &trackingBody{Reader: strings.NewReader(data)}
	return &UploadCamera{Body: body, Filename: "capture.jpg", ContentType: "image/jpeg"}, body
}

type memDescriptors struct {
	mu sync.Mutex
	m  map[string]Descriptor
}

func (s *memDescriptors) SaveDescriptor(_ context.Context, id string, d Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]Descriptor)
	}
	s.m[id] = d
	return nil
}

func (s *memDescriptors) Descriptors(context.Context) (map[string]Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Descriptor, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out, nil
}

type failingRecognizer struct{ err error }

func (f failingRecognizer) Recognize(context.Context, Frame) (Recognition, error) {
	return Recognition{}, f.err
}

func (f failingRecognizer) Enroll(context.Context, string, Frame) error { return f.err }

type panickingRecognizer struct{}

func (panickingRecognizer) Recognize(context.Context, Frame) (Recognition, error) {
	panic("boom")
}

func (panickingRecognizer) Enroll(context.Context, string, Frame) error { panic("boom") }

func vec(fill float64) Descriptor {
	d := make(Descriptor, DescriptorLength)
	for i := range d {
		d[i] = fill
	}
	return d
}

// ─────────────────────────────────────────────────────────────────────────────
// Descriptors
// ─────────────────────────────────────────────────────────────────────────────

func TestDescriptor_Validate(t *testing.T) {
	assert.NoError(t, vec(0.1).Validate())
	assert.ErrorIs(t, Descriptor{1, 2, 3}.Validate(), shared.ErrInvalidDescriptor)

	bad := vec(0)
	bad[5] = math.NaN()
	assert.ErrorIs(t, bad.Validate(), shared.ErrInvalidDescriptor)
}

func TestLocalRecognizer_ThresholdBoundary(t *testing.T) {
	store := &memDescriptors{}
	r := NewLocalRecognizer(store)
	ctx := context.Background()

	require.NoError(t, r.Enroll(ctx, "Ada", Frame{Descriptor: vec(0)}))

	// one component moved by d gives distance d
	near := vec(0)
	near[0] = 0.59
	got, err := r.Recognize(ctx, Frame{Descriptor: near})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.SubjectID)
	assert.InDelta(t, 0.59, got.Distance, 1e-9)

	exact := vec(0)
	exact[0] = 0.6
	_, err = r.Recognize(ctx, Frame{Descriptor: exact})
	assert.ErrorIs(t, err, shared.ErrFaceNotRecognized)
}

func TestLocalRecognizer_PicksNearest(t *testing.T) {
	store := &memDescriptors{}
	r := NewLocalRecognizer(store)
	ctx := context.Background()

	far := vec(0)
	far[1] = 0.5
	require.NoError(t, r.Enroll(ctx, "Far", Frame{Descriptor: far}))
	require.NoError(t, r.Enroll(ctx, "Near", Frame{Descriptor: vec(0)}))

	sample := vec(0)
	sample[1] = 0.1
	got, err := r.Recognize(ctx, Frame{Descriptor: sample})
	require.NoError(t, err)
	assert.Equal(t, "Near", got.SubjectID)
}

func TestLocalRecognizer_NoProfiles(t *testing.T) {
	r := NewLocalRecognizer(&memDescriptors{})
	_, err := r.Recognize(context.Background(), Frame{Descriptor: vec(0)})
	assert.ErrorIs(t, err, shared.ErrFaceProfileAbsent)
}

// ─────────────────────────────────────────────────────────────────────────────
// Remote client
// ─────────────────────────────────────────────────────────────────────────────

func TestClient_Recognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/face/recognize", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "capture.jpg", hdr.Filename)

		w.Header().Set("Content-Type", "application/json")
		if string(data) == "known" {
			_, _ = w.Write([]byte(`{"status":"success","student_id":"Student User"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"failed"}`))
	}))
	defer srv.Close()

	c := NewClient(DefaultClientConfig(srv.URL))

	got, err := c.Recognize(context.Background(), Frame{Image: []byte("known")})
	require.NoError(t, err)
	assert.Equal(t, "Student User", got.SubjectID)

	_, err = c.Recognize(context.Background(), Frame{Image: []byte("stranger")})
	assert.ErrorIs(t, err, shared.ErrFaceNotRecognized)
}

func TestClient_Enroll(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/face/register", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		gotID = r.FormValue("student_id")
		if gotID == "reject" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(DefaultClientConfig(srv.URL))

	require.NoError(t, c.Enroll(context.Background(), "Student User", Frame{Image: []byte("img")}))
	assert.Equal(t, "Student User", gotID)

	err := c.Enroll(context.Background(), "reject", Frame{Image: []byte("img")})
	assert.ErrorIs(t, err, shared.ErrRegistrationRejected)
}

func TestClient_ServerErrorNoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(DefaultClientConfig(srv.URL))
	_, err := c.Recognize(context.Background(), Frame{Image: []byte("x")})

	assert.ErrorIs(t, err, shared.ErrFaceServiceFailed)
	assert.True(t, shared.IsExternalService(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesWhenConfigured(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","student_id":"S1"}`))
	}))
	defer srv.Close()

	cfg := DefaultClientConfig(srv.URL)
	cfg.MaxAttempts = 2
	got, err := NewClient(cfg).Recognize(context.Background(), Frame{Image: []byte("x")})

	require.NoError(t, err)
	assert.Equal(t, "S1", got.SubjectID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(DefaultClientConfig(url)).Recognize(context.Background(), Frame{Image: []byte("x")})
	assert.ErrorIs(t, err, shared.ErrFaceServiceDown)
	assert.Equal(t, MsgServerError, UserMessage(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Verifier and stream discipline
// ─────────────────────────────────────────────────────────────────────────────

func TestVerifier_ClosesStreamOnSuccess(t *testing.T) {
	store := &memDescriptors{}
	require.NoError(t, store.SaveDescriptor(context.Background(), "Ada", vec(0)))

	cam, body := upload("img")
	cam.Descriptor = vec(0)

	got, err := NewVerifier(NewLocalRecognizer(store), nil).Verify(context.Background(), cam)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.SubjectID)
	assert.True(t, body.closed.Load())
}

func TestVerifier_ClosesStreamOnError(t *testing.T) {
	cam, body := upload("img")

	_, err := NewVerifier(failingRecognizer{err: shared.ErrFaceNotRecognized}, nil).Verify(context.Background(), cam)
	assert.ErrorIs(t, err, shared.ErrFaceNotRecognized)
	assert.True(t, body.closed.Load())
	assert.Equal(t, MsgNotRecognized, UserMessage(err))
}

func TestVerifier_ClosesStreamOnPanic(t *testing.T) {
	cam, body := upload("img")

	assert.Panics(t, func() {
		_, _ = NewVerifier(panickingRecognizer{}, nil).Verify(context.Background(), cam)
	})
	assert.True(t, body.closed.Load())
}

func TestVerifier_CameraUnavailable(t *testing.T) {
	_, err := NewVerifier(failingRecognizer{}, nil).Verify(context.Background(), &UploadCamera{})
	assert.ErrorIs(t, err, shared.ErrCameraUnavailable)
	assert.Equal(t, MsgCameraDenied, UserMessage(err))
}

func TestVerifier_RegisterClosesStream(t *testing.T) {
	cam, body := upload("img")

	err := NewVerifier(failingRecognizer{err: shared.ErrRegistrationRejected}, nil).Register(context.Background(), cam, "Ada")
	assert.ErrorIs(t, err, shared.ErrRegistrationRejected)
	assert.True(t, body.closed.Load())
	assert.Equal(t, MsgRegistrationFailed, UserMessage(err))
}

func TestUploadCamera_SingleUse(t *testing.T) {
	cam, _ := upload("img")
	s, err := cam.Open(context.Background())
	require.NoError(t, err)
	defer s.Close()

	_, err = cam.Open(context.Background())
	assert.Error(t, err)

	_, err = s.Capture(context.Background())
	require.NoError(t, err)
	_, err = s.Capture(context.Background())
	assert.True(t, errors.Is(err, io.EOF))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Verified: Ada", VerifiedMessage("Ada"))
	assert.Equal(t, "Attendance Marked for Ada", AttendanceMarkedMessage("Ada"))
	assert.Equal(t, MsgStudentsOnly, UserMessage(shared.ErrRoleNotPermitted))
	assert.Empty(t, UserMessage(nil))
}
