package viewerrpc_test

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/viewer"
	"github.com/nki-radiology/SegmentationReview/internal/viewer/viewerrpc"
)

// restartableViewer serves the stub on a fixed socket path and can be
// stopped and started again to simulate an adapter restart.
type restartableViewer struct {
	t      *testing.T
	socket string
	stub   *stubViewer

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
}

func startRestartableViewer(t *testing.T, socket string, stub *stubViewer) *restartableViewer {
	t.Helper()
	v := &restartableViewer{t: t, socket: socket, stub: stub, conns: make(map[net.Conn]struct{})}
	v.start()
	t.Cleanup(v.stop)
	return v
}

func (v *restartableViewer) start() {
	v.t.Helper()
	listener, err := net.Listen("unix", v.socket)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			v.t.Skipf("skipping viewer rpc test: %v", err)
		}
		v.t.Fatalf("listen on socket: %v", err)
	}
	srv := rpc.NewServer()
	if err := srv.RegisterName("Viewer", v.stub); err != nil {
		v.t.Fatalf("register rpc service: %v", err)
	}
	v.mu.Lock()
	v.listener = listener
	v.mu.Unlock()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			v.mu.Lock()
			v.conns[conn] = struct{}{}
			v.mu.Unlock()
			go func() {
				srv.ServeCodec(jsonrpc.NewServerCodec(conn))
				v.mu.Lock()
				delete(v.conns, conn)
				v.mu.Unlock()
			}()
		}
	}()
}

// stop closes the listener and every live connection. Closing the
// listener unlinks the socket file, so start can reuse the path.
func (v *restartableViewer) stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.listener != nil {
		v.listener.Close()
		v.listener = nil
	}
	for conn := range v.conns {
		conn.Close()
		delete(v.conns, conn)
	}
}

func TestReconnectingRedialsAfterRestart(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "viewer.sock")
	stub := newStubViewer()
	bridge := viewerrpc.NewReconnecting(socket, viewerrpc.Options{
		ConnectTimeout: time.Second,
		RequestTimeout: 5 * time.Second,
	}, nil)
	t.Cleanup(func() { bridge.Close() })
	ctx := context.Background()

	// The bridge is lazy: it exists before the adapter does, but calls
	// report unavailable until something listens.
	if _, err := bridge.LoadVolume(ctx, "/data/P-0001/image.nii.gz"); !errors.Is(err, viewer.ErrUnavailable) {
		t.Fatalf("LoadVolume before adapter start = %v, want ErrUnavailable", err)
	}

	srv := startRestartableViewer(t, socket, stub)
	if _, err := bridge.LoadVolume(ctx, "/data/P-0001/image.nii.gz"); err != nil {
		t.Fatalf("LoadVolume: %v", err)
	}

	srv.stop()
	if _, err := bridge.LoadVolume(ctx, "/data/P-0002/image.nii.gz"); !errors.Is(err, viewer.ErrUnavailable) {
		t.Fatalf("LoadVolume after adapter stop = %v, want ErrUnavailable", err)
	}

	srv.start()
	nodeID, err := bridge.LoadVolume(ctx, "/data/P-0003/image.nii.gz")
	if err != nil {
		t.Fatalf("LoadVolume after adapter restart: %v", err)
	}
	if nodeID == "" {
		t.Fatal("expected a node id from the restarted adapter")
	}
}

func TestReconnectingKeepsRemoteErrors(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "viewer.sock")
	stub := newStubViewer()
	startRestartableViewer(t, socket, stub)

	bridge := viewerrpc.NewReconnecting(socket, viewerrpc.Options{ConnectTimeout: time.Second}, nil)
	t.Cleanup(func() { bridge.Close() })
	ctx := context.Background()

	// A node-level miss is the viewer answering, not the bridge dying;
	// the connection must survive it.
	if err := bridge.PresentVolume(ctx, "vol-999"); !errors.Is(err, viewer.ErrNodeAbsent) {
		t.Fatalf("PresentVolume(unknown) = %v, want ErrNodeAbsent", err)
	}
	if _, err := bridge.LoadVolume(ctx, "/data/P-0001/image.nii.gz"); err != nil {
		t.Fatalf("LoadVolume after node miss: %v", err)
	}
}

func TestReconnectingSubscribeSpansRestarts(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "viewer.sock")
	stub := newStubViewer()
	startRestartableViewer(t, socket, stub)

	bridge := viewerrpc.NewReconnecting(socket, viewerrpc.Options{
		ConnectTimeout: time.Second,
		RequestTimeout: 5 * time.Second,
	}, nil)
	t.Cleanup(func() { bridge.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := bridge.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	waitEvent := func(want viewer.EventKind) {
		t.Helper()
		select {
		case event, open := <-events:
			if !open {
				t.Fatalf("event channel closed while waiting for %v", want)
			}
			if event.Kind != want {
				t.Fatalf("event kind = %v, want %v", event.Kind, want)
			}
		case <-time.After(15 * time.Second):
			t.Fatalf("timed out waiting for %v", want)
		}
	}

	stub.events <- "scene-cleared"
	waitEvent(viewer.EventSceneCleared)

	// Kill the subscription; the bridge forwards the shutdown event,
	// keeps the channel open, and resubscribes on its own.
	stub.events <- "fail"
	waitEvent(viewer.EventShutdown)

	stub.events <- "scene-cleared"
	waitEvent(viewer.EventSceneCleared)

	cancel()
	select {
	case _, open := <-events:
		if open {
			t.Fatal("expected channel close after cancel")
		}
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
