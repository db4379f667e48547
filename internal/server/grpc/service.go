package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the catalog service.
const ServiceName = "tentech.catalog.v1.CatalogService"

// Method names of the catalog service.
const (
	MethodRegister         = "Register"
	MethodLogin            = "Login"
	MethodRefresh          = "Refresh"
	MethodActivate         = "Activate"
	MethodResendActivation = "ResendActivation"
	MethodCreateProduct    = "CreateProduct"
	MethodUpdateProduct    = "UpdateProduct"
	MethodGetProduct       = "GetProduct"
	MethodDeleteProduct    = "DeleteProduct"
	MethodListProducts     = "ListProducts"
	MethodImageUploadURL   = "ImageUploadURL"
)

// CatalogServer is the server API of the catalog service. Requests and
// responses are google.protobuf.Struct messages keyed by snake_case names.
type CatalogServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Activate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResendActivation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ImageUploadURL(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(CatalogServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// FullMethod returns the gRPC path of a catalog method, e.g.
// "/tentech.catalog.v1.CatalogService/Login".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CatalogServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(CatalogServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the catalog service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodRegister, CatalogServer.Register),
		unaryHandler(MethodLogin, CatalogServer.Login),
		unaryHandler(MethodRefresh, CatalogServer.Refresh),
		unaryHandler(MethodActivate, CatalogServer.Activate),
		unaryHandler(MethodResendActivation, CatalogServer.ResendActivation),
		unaryHandler(MethodCreateProduct, CatalogServer.CreateProduct),
		unaryHandler(MethodUpdateProduct, CatalogServer.UpdateProduct),
		unaryHandler(MethodGetProduct, CatalogServer.GetProduct),
		unaryHandler(MethodDeleteProduct, CatalogServer.DeleteProduct),
		unaryHandler(MethodListProducts, CatalogServer.ListProducts),
		unaryHandler(MethodImageUploadURL, CatalogServer.ImageUploadURL),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tentech/catalog/v1/catalog.proto",
}

// RegisterCatalogServer registers srv on s.
func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Invoke calls a catalog method over cc.
func Invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
