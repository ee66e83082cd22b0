package tcp

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/okian/dosewatch/internal/adapters/repository"
	"github.com/okian/dosewatch/internal/app"
	"github.com/okian/dosewatch/internal/domain/model"
)

type capturedReading struct {
	grams  float64
	pinned *model.SubjectID
}

// captureProcessor records readings and replies with canned errors.
type captureProcessor struct {
	readings chan capturedReading
	errs     chan error
}

func newCaptureProcessor() *captureProcessor {
	return &captureProcessor{
		readings: make(chan capturedReading, 16),
		errs:     make(chan error, 16),
	}
}

func (p *captureProcessor) ProcessReading(_ context.Context, raw float64, pinned *model.SubjectID) (app.Outcome, error) {
	p.readings <- capturedReading{grams: raw, pinned: pinned}
	select {
	case err := <-p.errs:
		return app.Outcome{}, err
	default:
		return app.Outcome{}, nil
	}
}

func startTestServer(t *testing.T, p Processor, opts ...ServerOption) *Server {
	t.Helper()
	opts = append([]ServerOption{WithAddr("127.0.0.1:0")}, opts...)
	srv := NewServer(p, opts...)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func nextReading(t *testing.T, p *captureProcessor) capturedReading {
	t.Helper()
	select {
	case r := <-p.readings:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reading")
		return capturedReading{}
	}
}

func TestServerDeliversReadings(t *testing.T) {
	p := newCaptureProcessor()
	srv := startTestServer(t, p)
	conn := dial(t, srv)

	if _, err := conn.Write([]byte("50.0\n49.0\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if r := nextReading(t, p); r.grams != 50.0 || r.pinned != nil {
		t.Fatalf("first reading = %+v, want 50.0 unpinned", r)
	}
	if r := nextReading(t, p); r.grams != 49.0 {
		t.Fatalf("second reading grams = %v, want 49.0", r.grams)
	}
}

func TestServerSubjectPinning(t *testing.T) {
	p := newCaptureProcessor()
	srv := startTestServer(t, p)
	conn := dial(t, srv)

	if _, err := conn.Write([]byte("subject 7\n49.0\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := nextReading(t, p)
	if r.pinned == nil || *r.pinned != 7 {
		t.Fatalf("reading not pinned to subject 7: %+v", r)
	}
}

func TestServerSkipsGarbageLines(t *testing.T) {
	p := newCaptureProcessor()
	srv := startTestServer(t, p)
	conn := dial(t, srv)

	if _, err := conn.Write([]byte("hello scale\nsubject nope\n49.0\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if r := nextReading(t, p); r.grams != 49.0 {
		t.Fatalf("got grams %v, want the one numeric line 49.0", r.grams)
	}
	select {
	case r := <-p.readings:
		t.Fatalf("unexpected extra reading %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServerSurvivesProcessorErrors(t *testing.T) {
	p := newCaptureProcessor()
	p.errs <- repository.ErrNotFound
	srv := startTestServer(t, p)
	conn := dial(t, srv)

	if _, err := conn.Write([]byte("49.0\n48.5\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Both readings reach the processor even though the first errored.
	nextReading(t, p)
	nextReading(t, p)
}

func TestServerIdleTimeout(t *testing.T) {
	p := newCaptureProcessor()
	srv := startTestServer(t, p, WithIdleTimeout(150*time.Millisecond))
	conn := dial(t, srv)

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != io.EOF {
		t.Fatalf("expected server to close idle connection, read err = %v", err)
	}
}

func TestServerStopClosesConnections(t *testing.T) {
	p := newCaptureProcessor()
	srv := startTestServer(t, p)
	conn := dial(t, srv)

	// Make sure the connection is registered before stopping.
	if _, err := conn.Write([]byte("49.0\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	nextReading(t, p)

	srv.Stop()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected read to fail after server stop")
	}
}
