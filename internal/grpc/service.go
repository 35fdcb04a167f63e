package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const (
	deliveryServiceName = "delivery.v1.DeliveryService"
	adminServiceName    = "delivery.v1.AdminService"
)

// DeliveryServer is served to customers and riders.
type DeliveryServer interface {
	CreateOrder(context.Context, *CreateOrderRequest) (*CreateOrderResponse, error)
	AssignOrder(context.Context, *AssignOrderRequest) (*AssignOrderResponse, error)
	DeleteOrder(context.Context, *DeleteOrderRequest) (*DeleteOrderResponse, error)
	GetAblyToken(context.Context, *AblyTokenRequest) (*AblyToken, error)
	GetGoogleMaps(context.Context, *GoogleMapsRequest) (*GoogleMapsKey, error)
	GetMapbox(context.Context, *MapboxRequest) (*MapboxToken, error)
}

// AdminServiceServer is served to admins.
type AdminServiceServer interface {
	CreateUser(context.Context, *CreateUserRequest) (*CreateUserResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
}

var DeliveryServiceDesc = grpc.ServiceDesc{
	ServiceName: deliveryServiceName,
	HandlerType: (*DeliveryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(deliveryServiceName, "CreateOrder", DeliveryServer.CreateOrder),
		unary(deliveryServiceName, "AssignOrder", DeliveryServer.AssignOrder),
		unary(deliveryServiceName, "DeleteOrder", DeliveryServer.DeleteOrder),
		unary(deliveryServiceName, "GetAblyToken", DeliveryServer.GetAblyToken),
		unary(deliveryServiceName, "GetGoogleMaps", DeliveryServer.GetGoogleMaps),
		unary(deliveryServiceName, "GetMapbox", DeliveryServer.GetMapbox),
	},
	Streams: []grpc.StreamDesc{},
}

var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(adminServiceName, "CreateUser", AdminServiceServer.CreateUser),
		unary(adminServiceName, "GetOrder", AdminServiceServer.GetOrder),
	},
	Streams: []grpc.StreamDesc{},
}

// unary builds the method descriptor for call, decoding the request and running
// it through the server's interceptor chain.
func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(S)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// Client calls both services over cc with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, service, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+service+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*CreateOrderResponse, error) {
	return invoke[CreateOrderResponse](ctx, c, deliveryServiceName, "CreateOrder", in, opts)
}

func (c *Client) AssignOrder(ctx context.Context, in *AssignOrderRequest, opts ...grpc.CallOption) (*AssignOrderResponse, error) {
	return invoke[AssignOrderResponse](ctx, c, deliveryServiceName, "AssignOrder", in, opts)
}

func (c *Client) DeleteOrder(ctx context.Context, in *DeleteOrderRequest, opts ...grpc.CallOption) (*DeleteOrderResponse, error) {
	return invoke[DeleteOrderResponse](ctx, c, deliveryServiceName, "DeleteOrder", in, opts)
}

func (c *Client) GetAblyToken(ctx context.Context, in *AblyTokenRequest, opts ...grpc.CallOption) (*AblyToken, error) {
	return invoke[AblyToken](ctx, c, deliveryServiceName, "GetAblyToken", in, opts)
}

func (c *Client) GetGoogleMaps(ctx context.Context, in *GoogleMapsRequest, opts ...grpc.CallOption) (*GoogleMapsKey, error) {
	return invoke[GoogleMapsKey](ctx, c, deliveryServiceName, "GetGoogleMaps", in, opts)
}

func (c *Client) GetMapbox(ctx context.Context, in *MapboxRequest, opts ...grpc.CallOption) (*MapboxToken, error) {
	return invoke[MapboxToken](ctx, c, deliveryServiceName, "GetMapbox", in, opts)
}

func (c *Client) CreateUser(ctx context.Context, in *CreateUserRequest, opts ...grpc.CallOption) (*CreateUserResponse, error) {
	return invoke[CreateUserResponse](ctx, c, adminServiceName, "CreateUser", in, opts)
}

func (c *Client) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error) {
	return invoke[GetOrderResponse](ctx, c, adminServiceName, "GetOrder", in, opts)
}
