package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/tentech/internal/common"
	"github.com/dmitrijs2005/tentech/internal/logging"
	"github.com/dmitrijs2005/tentech/internal/server/auth"
	"github.com/dmitrijs2005/tentech/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop{}, nil, nil, nil, "secret")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop{}, nil, nil, nil, "secret")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

func dialBufconn(t *testing.T, s *GRPCServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return conn
}

func TestServe_EndToEnd(t *testing.T) {
	us := &fakeUsers{loginResp: &services.TokenPair{AccessToken: "a", RefreshToken: "r"}}
	cs := newFakeCatalog()
	conn := dialBufconn(t, NewGRPCServer("", logging.Nop{}, us, cs, nil, "secret"))
	ctx := context.Background()

	out, err := Invoke(ctx, conn, MethodLogin, &structpb.Struct{})
	require.NoError(t, err)
	assert.Equal(t, "a", out.GetFields()["access_token"].GetStringValue())

	req, err := structpb.NewStruct(map[string]any{"title": "T", "tags": []any{2, 1}})
	require.NoError(t, err)

	_, err = Invoke(ctx, conn, MethodCreateProduct, req)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	tok, err := auth.GenerateToken(9, []byte("secret"), time.Minute)
	require.NoError(t, err)
	authed := metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, tok)

	out, err = Invoke(authed, conn, MethodCreateProduct, req)
	require.NoError(t, err)
	assert.Equal(t, float64(9), out.GetFields()["user_id"].GetNumberValue())
	assert.Len(t, cs.products, 1)
}

func TestServe_Health(t *testing.T) {
	conn := dialBufconn(t, NewGRPCServer("", logging.Nop{}, nil, nil, nil, "secret"))

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
