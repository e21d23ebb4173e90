package util

import (
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/retry"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/grpc-ecosystem/grpc-opentracing/go/otgrpc"
	"github.com/opentracing/opentracing-go"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type ConnOptions struct {
	// Tracing traces calls with the global opentracing tracer.
	Tracing bool
	// UnaryMaxRetries caps retries of unary calls that opt in with grpc_retry.WithMax.
	UnaryMaxRetries uint
	// Logger logs every call when set.
	Logger *logrus.Entry
}

// NewGrpcConn creates a client connection with the interceptors for metrics, logging, tracing and retries.
// Connecting is lazy; the address is only dialed by the first call.
func NewGrpcConn(address string, opts ConnOptions, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	unary := []grpc.UnaryClientInterceptor{
		grpc_prometheus.UnaryClientInterceptor,
		grpc_retry.UnaryClientInterceptor(
			grpc_retry.WithMax(0),
			grpc_retry.WithBackoff(grpc_retry.BackoffExponential(50*time.Millisecond)),
		),
	}
	stream := []grpc.StreamClientInterceptor{
		grpc_prometheus.StreamClientInterceptor,
	}
	if opts.Logger != nil {
		unary = append(unary, grpc_logrus.UnaryClientInterceptor(opts.Logger))
		stream = append(stream, grpc_logrus.StreamClientInterceptor(opts.Logger))
	}
	if opts.Tracing {
		tracer := opentracing.GlobalTracer()
		unary = append(unary, otgrpc.OpenTracingClientInterceptor(tracer))
		stream = append(stream, otgrpc.OpenTracingStreamClientInterceptor(tracer))
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpc_middleware.ChainUnaryClient(unary...)),
		grpc.WithStreamInterceptor(grpc_middleware.ChainStreamClient(stream...)),
	}
	return grpc.NewClient(address, append(dialOpts, extra...)...)
}

type ServerOptions struct {
	Tracing bool
	Logger  *logrus.Entry
}

// NewGrpcServer creates a server with the interceptors for metrics, logging and tracing. The metrics of the
// server's services are registered once they are registered on the server, with grpc_prometheus.Register.
func NewGrpcServer(opts ServerOptions, extra ...grpc.ServerOption) *grpc.Server {
	unary := []grpc.UnaryServerInterceptor{grpc_prometheus.UnaryServerInterceptor}
	stream := []grpc.StreamServerInterceptor{grpc_prometheus.StreamServerInterceptor}
	if opts.Logger != nil {
		unary = append(unary, grpc_logrus.UnaryServerInterceptor(opts.Logger))
		stream = append(stream, grpc_logrus.StreamServerInterceptor(opts.Logger))
	}
	if opts.Tracing {
		tracer := opentracing.GlobalTracer()
		unary = append(unary, otgrpc.OpenTracingServerInterceptor(tracer))
		stream = append(stream, otgrpc.OpenTracingStreamServerInterceptor(tracer))
	}
	serverOpts := []grpc.ServerOption{
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(unary...)),
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(stream...)),
	}
	return grpc.NewServer(append(serverOpts, extra...)...)
}

// Uid generates a unique id.
func Uid() string {
	return uuid.NewV4().String()
}
