package grpc

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/dmitrijs2005/tentech/internal/common"
	"github.com/dmitrijs2005/tentech/internal/server/models"
	"github.com/dmitrijs2005/tentech/internal/server/notify"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

// int32Field reads an optional whole number. A missing key yields 0.
func int32Field(in *structpb.Struct, key string) (int32, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", key)
	}
	return toInt32(key, n.NumberValue)
}

func toInt32(key string, f float64) (int32, error) {
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a 32-bit integer", key)
	}
	return int32(f), nil
}

func tagsField(in *structpb.Struct) ([]int32, error) {
	v, ok := in.GetFields()["tags"]
	if !ok {
		return nil, nil
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "tags must be a list")
	}
	tags := make([]int32, 0, len(list.ListValue.GetValues()))
	for _, item := range list.ListValue.GetValues() {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "tags must be numbers")
		}
		tag, err := toInt32("tags", n.NumberValue)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func uuidField(in *structpb.Struct) (uuid.UUID, error) {
	id, err := uuid.Parse(stringField(in, "uuid"))
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "uuid is malformed")
	}
	return id, nil
}

func productFields(in *structpb.Struct) (models.ProductFields, []int32, error) {
	duration, err := int32Field(in, "duration")
	if err != nil {
		return models.ProductFields{}, nil, err
	}
	tags, err := tagsField(in)
	if err != nil {
		return models.ProductFields{}, nil, err
	}
	return models.ProductFields{
		Title:    stringField(in, "title"),
		Body:     stringField(in, "body"),
		Img:      stringField(in, "img"),
		Duration: duration,
		Kind:     stringField(in, "kind"),
	}, tags, nil
}

func productMap(p *models.Product) map[string]any {
	tags := make([]any, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, int64(t))
	}
	return map[string]any{
		"uuid":     p.UUID.String(),
		"user_id":  p.UserID,
		"title":    p.Title,
		"body":     p.Body,
		"img":      p.Img,
		"duration": int64(p.Duration),
		"kind":     p.Kind,
		"tags":     tags,
	}
}

func userMap(u *models.User) map[string]any {
	m := map[string]any{
		"id":        u.ID,
		"username":  u.UserName,
		"nickname":  u.Nickname,
		"email":     u.Email,
		"activated": u.Activated,
	}
	if u.ActivatedAt != nil {
		m["activated_at"] = u.ActivatedAt.UTC().Format(time.RFC3339)
	}
	return m
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// toStatus maps service errors to gRPC statuses.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	var de *notify.DeliveryError
	switch {
	case errors.As(err, &de):
		return status.Error(codes.Unavailable, "activation email could not be delivered")
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, strings.TrimPrefix(err.Error(), common.ErrorValidation.Error()+": "))
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrConflict):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrRefreshTokenExpired.Error())
	case errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.InvalidArgument, common.ErrInvalidToken.Error())
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.FailedPrecondition, common.ErrTokenExpired.Error())
	case errors.Is(err, common.ErrNotActivated):
		return status.Error(codes.FailedPrecondition, common.ErrNotActivated.Error())
	case errors.Is(err, common.ErrAlreadyActivated):
		return status.Error(codes.FailedPrecondition, common.ErrAlreadyActivated.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
