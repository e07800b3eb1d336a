package server

import (
	"context"
	"net"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"user-crud-service/pkg/logger"
	"user-crud-service/pkg/ratelimit"
)

const bufSize = 1024 * 1024

func startBufconn(t *testing.T, limiter *ratelimit.Limiter) healthpb.HealthClient {
	lis := bufconn.Listen(bufSize)
	grpcServer, _ := SetupGRPC(zaptest.NewLogger(t), limiter)
	go func() {
		_ = grpcServer.Serve(lis)
	}()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return healthpb.NewHealthClient(conn)
}

func TestSetupGRPC_HealthCheck(t *testing.T) {
	client := startBufconn(t, nil)

	var header metadata.MD
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "trace-1")
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{}, grpc.Header(&header))

	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	assert.Equal(t, []string{"trace-1"}, header.Get(logger.RequestIDHeader))
}

func TestSetupGRPC_UnknownService(t *testing.T) {
	client := startBufconn(t, nil)

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestSetupGRPC_RateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	limiter := ratelimit.New(rdb, ratelimit.Config{
		RequestsPerSecond: 0.01,
		BurstCapacity:     1,
		Enabled:           true,
	}, zaptest.NewLogger(t))
	client := startBufconn(t, limiter)

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)

	_, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}
