package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/tentech/internal/common"
	"github.com/dmitrijs2005/tentech/internal/server/models"
	"github.com/dmitrijs2005/tentech/internal/server/services"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) fail(ctx context.Context, method string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal || status.Code(st) == codes.Unavailable {
		s.logger.Error(ctx, "request failed", "method", method, "error", err)
	}
	return st
}

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	s.logger.Info(ctx, "Registration request")

	user, err := s.users.Register(ctx,
		stringField(req, "username"),
		stringField(req, "nickname"),
		stringField(req, "email"),
		stringField(req, "password"))
	if err != nil {
		return nil, s.fail(ctx, MethodRegister, err)
	}

	s.logger.Info(ctx, "Registered", "user_id", user.ID)
	return toStruct(userMap(user))
}

func (s *GRPCServer) ResendActivation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.users.ResendActivation(ctx, stringField(req, "email")); err != nil {
		return nil, s.fail(ctx, MethodResendActivation, err)
	}
	return &structpb.Struct{}, nil
}

func (s *GRPCServer) Activate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.users.Activate(ctx, stringField(req, common.ActivationTokenParam))
	if err != nil {
		return nil, s.fail(ctx, MethodActivate, err)
	}
	return toStruct(userMap(user))
}

func tokenPair(p *services.TokenPair) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"access_token":  p.AccessToken,
		"refresh_token": p.RefreshToken,
	})
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	tokens, err := s.users.Login(ctx, stringField(req, "username"), stringField(req, "password"))
	if err != nil {
		return nil, s.fail(ctx, MethodLogin, err)
	}

	return tokenPair(tokens)
}

func (s *GRPCServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	tokens, err := s.users.RefreshToken(ctx, stringField(req, "refresh_token"))
	if err != nil {
		return nil, s.fail(ctx, MethodRefresh, err)
	}

	return tokenPair(tokens)
}

func (s *GRPCServer) CreateProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	fields, tags, err := productFields(req)
	if err != nil {
		return nil, err
	}

	p, err := s.catalog.Create(ctx, fields, tags, userID)
	if err != nil {
		return nil, s.fail(ctx, MethodCreateProduct, err)
	}
	return toStruct(productMap(p))
}

// ownedProduct loads the product named by the request and checks that
// userID owns it.
func (s *GRPCServer) ownedProduct(ctx context.Context, id uuid.UUID, userID int64) (*models.Product, error) {
	p, err := s.catalog.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, status.Error(codes.PermissionDenied, "not the owner")
	}
	return p, nil
}

func (s *GRPCServer) UpdateProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id, err := uuidField(req)
	if err != nil {
		return nil, err
	}
	fields, tags, err := productFields(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.ownedProduct(ctx, id, userID); err != nil {
		return nil, s.fail(ctx, MethodUpdateProduct, err)
	}

	p, err := s.catalog.Update(ctx, fields, tags, userID, id)
	if err != nil {
		return nil, s.fail(ctx, MethodUpdateProduct, err)
	}
	return toStruct(productMap(p))
}

func (s *GRPCServer) GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidField(req)
	if err != nil {
		return nil, err
	}

	p, err := s.catalog.Find(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, MethodGetProduct, err)
	}

	out := productMap(p)
	if p.Img != "" && s.media != nil {
		url, err := s.media.ImageDownloadURL(ctx, p.Img)
		if err != nil {
			s.logger.Warn(ctx, "image url unavailable", "uuid", p.UUID, "error", err)
		} else {
			out["img_url"] = url
		}
	}
	return toStruct(out)
}

func (s *GRPCServer) DeleteProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id, err := uuidField(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.ownedProduct(ctx, id, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return toStruct(map[string]any{"deleted": int64(0)})
		}
		return nil, s.fail(ctx, MethodDeleteProduct, err)
	}

	n, err := s.catalog.Delete(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, MethodDeleteProduct, err)
	}
	return toStruct(map[string]any{"deleted": n})
}

func (s *GRPCServer) ListProducts(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.catalog.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, MethodListProducts, err)
	}

	items := make([]any, 0, len(list))
	for _, p := range list {
		items = append(items, productMap(p))
	}
	return toStruct(map[string]any{"products": items})
}

func (s *GRPCServer) ImageUploadURL(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := userIDFromContext(ctx); err != nil {
		return nil, err
	}

	key, url, err := s.media.ImageUploadURL(ctx)
	if err != nil {
		return nil, s.fail(ctx, MethodImageUploadURL, err)
	}
	return toStruct(map[string]any{"key": key, "url": url})
}
