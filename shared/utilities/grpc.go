package utilities

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// RegisterHealthServer registers the gRPC health check service on grpcServer
// and marks the overall server and every named service as serving.
func RegisterHealthServer(grpcServer *grpc.Server, services ...string) *health.Server {
	healthServer := health.NewServer()
	SetServingStatus(healthServer, true, services...)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	return healthServer
}

// SetServingStatus flips the overall status and the status of every named
// service.
func SetServingStatus(healthServer *health.Server, serving bool, services ...string) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}

	healthServer.SetServingStatus("", status)
	for _, service := range services {
		healthServer.SetServingStatus(service, status)
	}
}

// CheckHealth dials target over plaintext and performs one health check for
// service ("" checks the server as a whole).
func CheckHealth(
	ctx context.Context,
	target string,
	service string,
	opts ...grpc.DialOption,
) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, fmt.Errorf("failed to create client for %s: %w", target, err)
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}

	return resp.GetStatus(), nil
}
