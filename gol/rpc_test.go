package gol

import (
	"bufio"
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWorkerProcess struct {
	addr     string
	service  *WorkerService
	registry *prometheus.Registry
	metrics  *Metrics
}

// Start a worker server on a loopback port, as "life worker" does
func startWorkerProcess(t *testing.T) *testWorkerProcess {
	t.Helper()
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	worker := NewWorker(nil)
	service := NewWorkerService(worker, metrics)
	handler, err := NewWorkerHandler(service, registry)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := &http.Server{Handler: handler}
	go server.Serve(listener)
	t.Cleanup(func() {
		server.Close()
		worker.Close()
	})
	return &testWorkerProcess{
		addr:     listener.Addr().String(),
		service:  service,
		registry: registry,
		metrics:  metrics,
	}
}

func startWorkerProcesses(t *testing.T, n int) ([]*testWorkerProcess, []string) {
	processes := make([]*testWorkerProcess, n)
	addrs := make([]string, n)
	for i := range processes {
		processes[i] = startWorkerProcess(t)
		addrs[i] = processes[i].addr
	}
	return processes, addrs
}

func TestRPC_BlinkerAcrossThreeProcesses(t *testing.T) {
	_, addrs := startWorkerProcesses(t, 3)
	vertical := gridFromStrings(t, " x ", " x ", " x ")

	once, err := Run(context.Background(), vertical, Params{Generations: 1, Workers: 3}, RPCDialer{Addrs: addrs})
	require.NoError(t, err)
	assert.Equal(t, render("   ", "xxx", "   "), once.String())

	twice, err := Run(context.Background(), vertical, Params{Generations: 2, Workers: 3}, RPCDialer{Addrs: addrs})
	require.NoError(t, err)
	assert.True(t, vertical.Equal(twice))
}

func TestRPC_MatchesSequential(t *testing.T) {
	processes, addrs := startWorkerProcesses(t, 4)
	grid := randomGrid(t, rand.New(rand.NewSource(5)), 30, 0.35)

	got, err := Run(context.Background(), grid, Params{Generations: 12, Workers: 4, Threads: 3}, RPCDialer{Addrs: addrs})

	require.NoError(t, err)
	assert.True(t, Evolve(grid, 12).Equal(got))
	for _, process := range processes {
		assert.Positive(t, testutil.ToFloat64(process.metrics.BytesSent))
		assert.Equal(t, uint64(12), histogramCount(t, process.registry, "gol_worker_step_duration_seconds"))
	}
}

func TestRPC_MissingAddressIsConfigError(t *testing.T) {
	_, addrs := startWorkerProcesses(t, 1)

	_, err := Run(context.Background(), gridFromStrings(t, "xx", "xx"), Params{Generations: 1, Workers: 2}, RPCDialer{Addrs: addrs})

	assert.ErrorIs(t, err, ErrConfig)
}

func TestRPC_RemoteErrorIsProtocolViolation(t *testing.T) {
	_, addrs := startWorkerProcesses(t, 1)
	ctx := context.Background()
	link, err := RPCDialer{Addrs: addrs}.Dial(ctx, 0)
	require.NoError(t, err)
	defer link.Close()

	require.NoError(t, link.Setup(ctx, SetupArgs{Size: 2, Generations: 1, Workers: 1, Band: Band{RowCount: 2}, Threads: 1}))

	_, err = link.Step(ctx, StepArgs{Generation: 0, Worker: 0, Cells: []byte{1, 2, 3}})
	require.Error(t, err)
	assert.ErrorIs(t, protocolError(err), ErrProtocol)
}

func TestRPC_ShutdownOnClose(t *testing.T) {
	processes, addrs := startWorkerProcesses(t, 1)
	link, err := RPCDialer{Addrs: addrs, ShutdownOnClose: true}.Dial(context.Background(), 0)
	require.NoError(t, err)

	require.NoError(t, link.Close())

	select {
	case <-processes[0].service.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker was not asked to shut down")
	}
}

func TestWorkerHandler_HealthAndMetrics(t *testing.T) {
	processes, _ := startWorkerProcesses(t, 1)
	base := "http://" + processes[0].addr

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "gol_worker_step_duration_seconds")
}

func histogramCount(t *testing.T, registry *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// Accept connections and never answer; with handshake set, complete the
// CONNECT handshake first and then stop reading
func startSilentListener(t *testing.T, handshake bool) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var conns []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn)
			if handshake {
				bufio.NewReader(conn).ReadString('\n')
				io.WriteString(conn, "HTTP/1.0 "+rpcConnected+"\n\n")
			}
		}
	}()
	t.Cleanup(func() {
		listener.Close()
		<-done
		for _, conn := range conns {
			conn.Close()
		}
	})
	return listener.Addr().String()
}

func TestRPC_SilentWorkerBoundedBySetupDeadline(t *testing.T) {
	addr := startSilentListener(t, false)
	grid := gridFromStrings(t, "xx", "xx")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := NewCoordinator(RPCDialer{Addrs: []string{addr}}).Initialize(ctx, grid, 1, 1)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, StageSetup, runErr.Stage)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRPC_RunTimeoutCoversInitialize(t *testing.T) {
	addr := startSilentListener(t, false)
	coordinator := NewCoordinator(RPCDialer{Addrs: []string{addr}}, WithRunTimeout(200*time.Millisecond))
	defer coordinator.Close()

	start := time.Now()
	err := coordinator.Initialize(context.Background(), gridFromStrings(t, "xx", "xx"), 1, 1)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRPC_CloseDoesNotWaitForWedgedWorker(t *testing.T) {
	addr := startSilentListener(t, true)
	previous := shutdownWait
	shutdownWait = 100 * time.Millisecond
	defer func() { shutdownWait = previous }()

	link, err := RPCDialer{Addrs: []string{addr}, ShutdownOnClose: true}.Dial(context.Background(), 0)
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		link.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an unanswered Shutdown")
	}
}
