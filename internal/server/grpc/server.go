package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/tentech/internal/logging"
	"github.com/dmitrijs2005/tentech/internal/server/models"
	"github.com/dmitrijs2005/tentech/internal/server/services"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type UserService interface {
	Register(ctx context.Context, username, nickname, email, password string) (*models.User, error)
	ResendActivation(ctx context.Context, email string) error
	Activate(ctx context.Context, token string) (*models.User, error)
	Login(ctx context.Context, userName, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

type CatalogService interface {
	Create(ctx context.Context, fields models.ProductFields, tags []int32, userID int64) (*models.Product, error)
	Update(ctx context.Context, fields models.ProductFields, tags []int32, userID int64, id uuid.UUID) (*models.Product, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Product, error)
}

type MediaService interface {
	ImageUploadURL(ctx context.Context) (string, string, error)
	ImageDownloadURL(ctx context.Context, key string) (string, error)
}

type GRPCServer struct {
	address   string
	users     UserService
	catalog   CatalogService
	media     MediaService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, us UserService, cs CatalogService, ms MediaService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		users:     us,
		catalog:   cs,
		media:     ms,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) newServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	RegisterCatalogServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv, hs
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv, hs := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
