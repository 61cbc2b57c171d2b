package shopv1

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeClientConn struct {
	invoke func(context.Context, string, any, any, ...grpc.CallOption) error
}

func (f *fakeClientConn) Invoke(ctx context.Context, method string, args any, reply any, opts ...grpc.CallOption) error {
	if f.invoke == nil {
		return errors.New("unexpected Invoke call")
	}
	return f.invoke(ctx, method, args, reply, opts...)
}

func (f *fakeClientConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not implemented")
}

func TestShopServiceClient_UsesJSONSubtypeAndFullMethod(t *testing.T) {
	var (
		gotMethod  string
		gotSubtype string
	)
	conn := &fakeClientConn{
		invoke: func(_ context.Context, method string, _ any, reply any, opts ...grpc.CallOption) error {
			gotMethod = method
			for _, opt := range opts {
				if sub, ok := opt.(grpc.ContentSubtypeCallOption); ok {
					gotSubtype = sub.ContentSubtype
				}
			}
			out, ok := reply.(*AddToCartResponse)
			if !ok {
				t.Fatalf("unexpected reply type: %T", reply)
			}
			out.Order = &Order{ID: "order-1", Status: OrderStatusInProgress}
			return nil
		},
	}

	client := NewShopServiceClient(conn)
	resp, err := client.AddToCart(context.Background(), &AddToCartRequest{ProductID: "p-1", Qty: 2})
	if err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if resp.Order.ID != "order-1" {
		t.Fatalf("unexpected response: %+v", resp.Order)
	}
	if gotMethod != "/shop.v1.ShopService/AddToCart" {
		t.Fatalf("unexpected method: %s", gotMethod)
	}
	if gotSubtype != CodecName {
		t.Fatalf("expected content subtype %q, got %q", CodecName, gotSubtype)
	}
}

func TestShopServiceClient_PropagatesErrors(t *testing.T) {
	conn := &fakeClientConn{
		invoke: func(context.Context, string, any, any, ...grpc.CallOption) error {
			return status.Error(codes.FailedPrecondition, "out of stock")
		},
	}

	resp, err := NewShopServiceClient(conn).PlaceOrder(context.Background(), &PlaceOrderRequest{})
	if resp != nil {
		t.Fatalf("expected nil response on error, got %+v", resp)
	}
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestServiceDesc_UnimplementedHandlers(t *testing.T) {
	seen := make(map[string]struct{}, len(ShopService_ServiceDesc.Methods))
	for _, method := range ShopService_ServiceDesc.Methods {
		if _, dup := seen[method.MethodName]; dup {
			t.Fatalf("duplicate method %s", method.MethodName)
		}
		seen[method.MethodName] = struct{}{}

		_, err := method.Handler(UnimplementedShopServiceServer{}, context.Background(), func(any) error { return nil }, nil)
		if status.Code(err) != codes.Unimplemented {
			t.Fatalf("%s: expected Unimplemented, got %v", method.MethodName, err)
		}
	}
	if len(seen) != 19 {
		t.Fatalf("expected 19 methods, got %d", len(seen))
	}
}

func TestServiceDesc_HandlerPassesThroughInterceptor(t *testing.T) {
	var info *grpc.UnaryServerInfo
	interceptor := func(ctx context.Context, req any, i *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		info = i
		return handler(ctx, req)
	}

	method := ShopService_ServiceDesc.Methods[0]
	_, err := method.Handler(UnimplementedShopServiceServer{}, context.Background(), func(any) error { return nil }, interceptor)
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("expected Unimplemented through interceptor, got %v", err)
	}
	if info == nil || info.FullMethod != FullMethod(method.MethodName) {
		t.Fatalf("unexpected server info: %+v", info)
	}
}

func TestServiceDesc_DecodeErrorStopsHandler(t *testing.T) {
	decodeErr := errors.New("bad payload")
	_, err := ShopService_ServiceDesc.Methods[0].Handler(UnimplementedShopServiceServer{}, context.Background(), func(any) error { return decodeErr }, nil)
	if !errors.Is(err, decodeErr) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestCodec_PlainAndProtoMessages(t *testing.T) {
	codec := Codec{}
	if codec.Name() != "json" {
		t.Fatalf("unexpected codec name %q", codec.Name())
	}

	data, err := codec.Marshal(&AddToCartRequest{ProductID: "p-1", Qty: 3})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if string(data) != `{"product_id":"p-1","qty":3}` {
		t.Fatalf("unexpected json: %s", data)
	}
	var decoded AddToCartRequest
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if decoded.ProductID != "p-1" || decoded.Qty != 3 {
		t.Fatalf("unexpected decoded request: %+v", decoded)
	}

	var empty LogoutRequest
	if err := codec.Unmarshal(nil, &empty); err != nil {
		t.Fatalf("empty payload must decode into zero message: %v", err)
	}

	health, err := codec.Marshal(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
	if err != nil {
		t.Fatalf("marshal proto: %v", err)
	}
	var back healthpb.HealthCheckResponse
	if err := codec.Unmarshal(health, &back); err != nil {
		t.Fatalf("unmarshal proto: %v", err)
	}
	if back.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected health status: %v", back.GetStatus())
	}

	if err := codec.Unmarshal([]byte("{"), &decoded); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestMetadataHelpers(t *testing.T) {
	ctx := WithToken(context.Background(), "tok")
	ctx = WithAdminToken(ctx, "admin")
	ctx = WithIdempotencyKey(ctx, " key-1 ")

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	if got := md.Get(MetadataAuthorization); len(got) != 1 || got[0] != "Bearer tok" {
		t.Fatalf("unexpected authorization: %v", got)
	}
	if got := md.Get(MetadataAdminToken); len(got) != 1 || got[0] != "admin" {
		t.Fatalf("unexpected admin token: %v", got)
	}
	if got := md.Get(MetadataIdempotencyKey); len(got) != 1 || got[0] != "key-1" {
		t.Fatalf("unexpected idempotency key: %v", got)
	}
}
