package http

import (
	"bufio"
	"context"
	"net"
	gohttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/storage/memory"
	"github.com/rhuss/todoflow/pkg/transport"
)

func startTestServer(t *testing.T, srv *Server) (string, context.CancelFunc) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.ServeOn(ctx, ln)
	time.Sleep(50 * time.Millisecond)
	return "http://" + ln.Addr().String(), cancel
}

func TestServerStreamsChat(t *testing.T) {
	store := memory.New(0)
	srv := NewServer(echoRunner(store), store, WithAdapterOptions(WithAuth(headerAuth)))

	base, stop := startTestServer(t, srv)
	defer stop()

	req, _ := gohttp.NewRequest(gohttp.MethodPost, base+"/api/chat/stream?message=hi", nil)
	req.Header.Set("X-User", "alice")
	resp, err := gohttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, gohttp.StatusOK)
	}
	if id := resp.Header.Get("X-Request-ID"); id == "" {
		t.Error("missing X-Request-ID response header")
	}

	var data []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			data = append(data, line)
		}
	}
	if len(data) != 3 || data[2] != "[DONE]" {
		t.Errorf("data lines = %v, want two events and [DONE]", data)
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	store := memory.New(0)
	slow := transport.ChatRunnerFunc(func(ctx context.Context, userID, message string, w transport.EventWriter) {
		time.Sleep(200 * time.Millisecond)
		w.WriteEvent(ctx, api.TextEvent("late"))
		w.WriteEvent(ctx, api.DoneEvent())
	})

	srv := NewServer(slow, store,
		WithShutdownTimeout(5*time.Second),
		WithAdapterOptions(WithAuth(headerAuth)),
	)
	base, stop := startTestServer(t, srv)
	defer stop()

	statusCh := make(chan int, 1)
	go func() {
		req, _ := gohttp.NewRequest(gohttp.MethodPost, base+"/api/chat/stream?message=hi", nil)
		req.Header.Set("X-User", "alice")
		resp, err := gohttp.DefaultClient.Do(req)
		if err != nil {
			statusCh <- 0
			return
		}
		defer resp.Body.Close()
		statusCh <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	if status := <-statusCh; status != gohttp.StatusOK {
		t.Errorf("slow request status = %d, want %d", status, gohttp.StatusOK)
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	srv := NewServer(echoRunner(memory.New(0)), memory.New(0),
		WithAddr(":9999"),
		WithMaxBodySize(1024),
		WithTimeouts(5*time.Second, 0),
		WithShutdownTimeout(10*time.Second),
		WithDuplicateDone(true),
		WithMetricsPath(""),
	)

	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Addr, ":9999")
	}
	if srv.config.MaxBodySize != 1024 {
		t.Errorf("max body size = %d, want %d", srv.config.MaxBodySize, 1024)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
	if srv.httpServer.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v, want %v", srv.httpServer.ReadTimeout, 5*time.Second)
	}
	if !srv.adapter.config.DuplicateDone {
		t.Error("duplicate done not passed to adapter")
	}
	if srv.adapter.config.MetricsPath != "" {
		t.Errorf("metrics path = %q, want disabled", srv.adapter.config.MetricsPath)
	}
}
