package gol

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/rpc"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Names of the remote procedures served by a worker process
const (
	WorkerSetup    = "Worker.Setup"
	WorkerStep     = "Worker.Step"
	WorkerShutdown = "Worker.Shutdown"
)

// WorkerService exposes a Worker over net/rpc.
type WorkerService struct {
	worker   *Worker
	metrics  *Metrics
	shutdown chan struct{}
	once     sync.Once
}

func NewWorkerService(worker *Worker, metrics *Metrics) *WorkerService {
	return &WorkerService{
		worker:   worker,
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}
}

func (service *WorkerService) Setup(args SetupArgs, reply *SetupReply) error {
	return service.worker.Setup(args)
}

func (service *WorkerService) Step(args StepArgs, reply *StepReply) error {
	timer := service.metrics.startStep()
	result, err := service.worker.Step(args)
	if err != nil {
		service.metrics.stepFailed()
		return err
	}
	timer.observe()
	service.metrics.bandExchanged(len(args.Cells), len(result.Cells))
	*reply = result
	return nil
}

// Shutdown asks the worker process to exit once the current call returns.
func (service *WorkerService) Shutdown(_ struct{}, _ *struct{}) error {
	service.worker.logger.Info("shutdown requested")
	service.once.Do(func() { close(service.shutdown) })
	return nil
}

// Done is closed after a Shutdown call.
func (service *WorkerService) Done() <-chan struct{} {
	return service.shutdown
}

// NewWorkerHandler serves the RPC endpoint together with /metrics and /healthz.
func NewWorkerHandler(service *WorkerService, gatherer prometheus.Gatherer) (http.Handler, error) {
	server := rpc.NewServer()
	if err := server.RegisterName("Worker", service); err != nil {
		return nil, fmt.Errorf("register worker service: %w", err)
	}

	router := chi.NewRouter()
	router.Handle(rpc.DefaultRPCPath, server)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return router, nil
}

// RPCDialer connects to worker processes, one address per band.
type RPCDialer struct {
	Addrs []string
	// ShutdownOnClose asks every worker process to exit when the run closes its links.
	ShutdownOnClose bool
}

func (d RPCDialer) Dial(ctx context.Context, index int) (Link, error) {
	if index < 0 || index >= len(d.Addrs) {
		return nil, fmt.Errorf("%w: no address for worker %d (%d configured)", ErrConfig, index, len(d.Addrs))
	}
	client, err := dialHTTP(ctx, d.Addrs[index])
	if err != nil {
		return nil, fmt.Errorf("dial worker %d at %s: %w", index, d.Addrs[index], err)
	}
	return &rpcLink{addr: d.Addrs[index], client: client, shutdown: d.ShutdownOnClose}, nil
}

// Response line of a net/rpc server accepting the HTTP CONNECT handshake
const rpcConnected = "200 Connected to Go RPC"

// dialHTTP is rpc.DialHTTP bounded by ctx, handshake included.
func dialHTTP(ctx context.Context, addr string) (*rpc.Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// Unblock the handshake when ctx ends
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	_, err = io.WriteString(conn, "CONNECT "+rpc.DefaultRPCPath+" HTTP/1.0\n\n")
	var resp *http.Response
	if err == nil {
		resp, err = http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: http.MethodConnect})
	}
	if !stop() {
		conn.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	if resp.Status != rpcConnected {
		conn.Close()
		return nil, fmt.Errorf("unexpected HTTP response: %s", resp.Status)
	}
	return rpc.NewClient(conn), nil
}

// How long Close waits for a worker to acknowledge Shutdown
var shutdownWait = 2 * time.Second

type rpcLink struct {
	addr     string
	client   *rpc.Client
	shutdown bool
	once     sync.Once
}

// Issue an asynchronous call and wait for it or for the context
func (link *rpcLink) call(ctx context.Context, method string, args, reply any) error {
	call := link.client.Go(method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
		if call.Error != nil {
			return fmt.Errorf("%s on %s: %w", method, link.addr, call.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (link *rpcLink) Setup(ctx context.Context, args SetupArgs) error {
	return link.call(ctx, WorkerSetup, args, &SetupReply{})
}

func (link *rpcLink) Step(ctx context.Context, args StepArgs) (StepReply, error) {
	var reply StepReply
	if err := link.call(ctx, WorkerStep, args, &reply); err != nil {
		return StepReply{}, err
	}
	return reply, nil
}

func (link *rpcLink) Close() error {
	var err error
	link.once.Do(func() {
		if link.shutdown {
			call := link.client.Go(WorkerShutdown, struct{}{}, &struct{}{}, make(chan *rpc.Call, 1))
			select {
			case <-call.Done:
			case <-time.After(shutdownWait):
			}
		}
		err = link.client.Close()
	})
	return err
}
