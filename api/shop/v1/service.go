// Package shopv1 описывает gRPC API магазина: сообщения, дескриптор ShopService,
// клиент и JSON-кодек для транспорта.
package shopv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName это полное имя gRPC-сервиса.
const ServiceName = "shop.v1.ShopService"

// Имена заголовков metadata.
const (
	MetadataAuthorization  = "authorization"
	MetadataAdminToken     = "x-admin-token"
	MetadataIdempotencyKey = "idempotency-key"
)

// FullMethod возвращает полное имя метода вида /shop.v1.ShopService/Method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ShopServiceServer реализует серверную часть API.
type ShopServiceServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	GetProfile(context.Context, *GetProfileRequest) (*GetProfileResponse, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*ChangePasswordResponse, error)
	Leaderboard(context.Context, *LeaderboardRequest) (*LeaderboardResponse, error)

	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	SearchProducts(context.Context, *SearchProductsRequest) (*SearchProductsResponse, error)
	GetProduct(context.Context, *GetProductRequest) (*GetProductResponse, error)
	AddProduct(context.Context, *AddProductRequest) (*AddProductResponse, error)
	UpdateProduct(context.Context, *UpdateProductRequest) (*UpdateProductResponse, error)
	RemoveProduct(context.Context, *RemoveProductRequest) (*RemoveProductResponse, error)

	GetCart(context.Context, *GetCartRequest) (*GetCartResponse, error)
	AddToCart(context.Context, *AddToCartRequest) (*AddToCartResponse, error)
	RemoveFromCart(context.Context, *RemoveFromCartRequest) (*RemoveFromCartResponse, error)
	PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error)
	OrderHistory(context.Context, *OrderHistoryRequest) (*OrderHistoryResponse, error)

	GetVersion(context.Context, *GetVersionRequest) (*GetVersionResponse, error)

	mustEmbedUnimplementedShopServiceServer()
}

// UnimplementedShopServiceServer отвечает codes.Unimplemented на все методы.
// Встраивается в реализации ради совместимости при добавлении методов.
type UnimplementedShopServiceServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedShopServiceServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, unimplemented("Register")
}
func (UnimplementedShopServiceServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, unimplemented("Login")
}
func (UnimplementedShopServiceServer) Logout(context.Context, *LogoutRequest) (*LogoutResponse, error) {
	return nil, unimplemented("Logout")
}
func (UnimplementedShopServiceServer) GetProfile(context.Context, *GetProfileRequest) (*GetProfileResponse, error) {
	return nil, unimplemented("GetProfile")
}
func (UnimplementedShopServiceServer) ChangePassword(context.Context, *ChangePasswordRequest) (*ChangePasswordResponse, error) {
	return nil, unimplemented("ChangePassword")
}
func (UnimplementedShopServiceServer) Leaderboard(context.Context, *LeaderboardRequest) (*LeaderboardResponse, error) {
	return nil, unimplemented("Leaderboard")
}
func (UnimplementedShopServiceServer) ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error) {
	return nil, unimplemented("ListProducts")
}
func (UnimplementedShopServiceServer) SearchProducts(context.Context, *SearchProductsRequest) (*SearchProductsResponse, error) {
	return nil, unimplemented("SearchProducts")
}
func (UnimplementedShopServiceServer) GetProduct(context.Context, *GetProductRequest) (*GetProductResponse, error) {
	return nil, unimplemented("GetProduct")
}
func (UnimplementedShopServiceServer) AddProduct(context.Context, *AddProductRequest) (*AddProductResponse, error) {
	return nil, unimplemented("AddProduct")
}
func (UnimplementedShopServiceServer) UpdateProduct(context.Context, *UpdateProductRequest) (*UpdateProductResponse, error) {
	return nil, unimplemented("UpdateProduct")
}
func (UnimplementedShopServiceServer) RemoveProduct(context.Context, *RemoveProductRequest) (*RemoveProductResponse, error) {
	return nil, unimplemented("RemoveProduct")
}
func (UnimplementedShopServiceServer) GetCart(context.Context, *GetCartRequest) (*GetCartResponse, error) {
	return nil, unimplemented("GetCart")
}
func (UnimplementedShopServiceServer) AddToCart(context.Context, *AddToCartRequest) (*AddToCartResponse, error) {
	return nil, unimplemented("AddToCart")
}
func (UnimplementedShopServiceServer) RemoveFromCart(context.Context, *RemoveFromCartRequest) (*RemoveFromCartResponse, error) {
	return nil, unimplemented("RemoveFromCart")
}
func (UnimplementedShopServiceServer) PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	return nil, unimplemented("PlaceOrder")
}
func (UnimplementedShopServiceServer) CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error) {
	return nil, unimplemented("CancelOrder")
}
func (UnimplementedShopServiceServer) OrderHistory(context.Context, *OrderHistoryRequest) (*OrderHistoryResponse, error) {
	return nil, unimplemented("OrderHistory")
}
func (UnimplementedShopServiceServer) GetVersion(context.Context, *GetVersionRequest) (*GetVersionResponse, error) {
	return nil, unimplemented("GetVersion")
}
func (UnimplementedShopServiceServer) mustEmbedUnimplementedShopServiceServer() {}

// RegisterShopServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterShopServiceServer(s grpc.ServiceRegistrar, srv ShopServiceServer) {
	s.RegisterService(&ShopService_ServiceDesc, srv)
}

// ShopService_ServiceDesc регистрируется через grpc.ServiceRegistrar.
//
//nolint:revive // имя совпадает с соглашением protoc-gen-go-grpc.
var ShopService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ShopServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", ShopServiceServer.Register),
		unary("Login", ShopServiceServer.Login),
		unary("Logout", ShopServiceServer.Logout),
		unary("GetProfile", ShopServiceServer.GetProfile),
		unary("ChangePassword", ShopServiceServer.ChangePassword),
		unary("Leaderboard", ShopServiceServer.Leaderboard),
		unary("ListProducts", ShopServiceServer.ListProducts),
		unary("SearchProducts", ShopServiceServer.SearchProducts),
		unary("GetProduct", ShopServiceServer.GetProduct),
		unary("AddProduct", ShopServiceServer.AddProduct),
		unary("UpdateProduct", ShopServiceServer.UpdateProduct),
		unary("RemoveProduct", ShopServiceServer.RemoveProduct),
		unary("GetCart", ShopServiceServer.GetCart),
		unary("AddToCart", ShopServiceServer.AddToCart),
		unary("RemoveFromCart", ShopServiceServer.RemoveFromCart),
		unary("PlaceOrder", ShopServiceServer.PlaceOrder),
		unary("CancelOrder", ShopServiceServer.CancelOrder),
		unary("OrderHistory", ShopServiceServer.OrderHistory),
		unary("GetVersion", ShopServiceServer.GetVersion),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shop/v1/shop_service",
}

// unary строит MethodDesc из method expression интерфейса сервера.
func unary[Req, Resp any](name string, call func(ShopServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ShopServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ShopServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
