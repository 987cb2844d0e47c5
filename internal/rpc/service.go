package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "growthvault.v1.DocumentService"

const (
	RegisterUser_FullMethodName  = "/" + ServiceName + "/RegisterUser"
	GetSalt_FullMethodName       = "/" + ServiceName + "/GetSalt"
	Login_FullMethodName         = "/" + ServiceName + "/Login"
	RefreshToken_FullMethodName  = "/" + ServiceName + "/RefreshToken"
	Logout_FullMethodName        = "/" + ServiceName + "/Logout"
	Ping_FullMethodName          = "/" + ServiceName + "/Ping"
	PutDocument_FullMethodName   = "/" + ServiceName + "/PutDocument"
	GetDocument_FullMethodName   = "/" + ServiceName + "/GetDocument"
	WatchDocument_FullMethodName = "/" + ServiceName + "/WatchDocument"
)

// PublicMethods lists the methods callable without an access token.
var PublicMethods = map[string]bool{
	RegisterUser_FullMethodName: true,
	GetSalt_FullMethodName:      true,
	Login_FullMethodName:        true,
	RefreshToken_FullMethodName: true,
	Ping_FullMethodName:         true,
}

// DocumentServiceClient is the client API for DocumentService.
type DocumentServiceClient interface {
	RegisterUser(ctx context.Context, in *RegisterUserRequest, opts ...grpc.CallOption) (*RegisterUserResponse, error)
	GetSalt(ctx context.Context, in *GetSaltRequest, opts ...grpc.CallOption) (*GetSaltResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*RefreshTokenResponse, error)
	Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
	PutDocument(ctx context.Context, in *PutDocumentRequest, opts ...grpc.CallOption) (*PutDocumentResponse, error)
	GetDocument(ctx context.Context, in *GetDocumentRequest, opts ...grpc.CallOption) (*GetDocumentResponse, error)
	WatchDocument(ctx context.Context, in *WatchDocumentRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[DocumentEvent], error)
}

type documentServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDocumentServiceClient wraps cc. Every call is sent with the JSON codec.
func NewDocumentServiceClient(cc grpc.ClientConnInterface) DocumentServiceClient {
	return &documentServiceClient{cc}
}

func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *documentServiceClient) RegisterUser(ctx context.Context, in *RegisterUserRequest, opts ...grpc.CallOption) (*RegisterUserResponse, error) {
	out := new(RegisterUserResponse)
	if err := c.cc.Invoke(ctx, RegisterUser_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentServiceClient) GetSalt(ctx context.Context, in *GetSaltRequest, opts ...grpc.CallOption) (*GetSaltResponse, error) {
	out := new(GetSaltResponse)
	if err := c.cc.Invoke(ctx, GetSalt_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	out := new(LoginResponse)
	if err := c.cc.Invoke(ctx, Login_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentServiceClient) RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*RefreshTokenResponse, error) {
	out := new(RefreshTokenResponse)
	if err := c.cc.Invoke(ctx, RefreshToken_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	out := new(LogoutResponse)
	if err := c.cc.Invoke(ctx, Logout_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.cc.Invoke(ctx, Ping_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentServiceClient) PutDocument(ctx context.Context, in *PutDocumentRequest, opts ...grpc.CallOption) (*PutDocumentResponse, error) {
	out := new(PutDocumentResponse)
	if err := c.cc.Invoke(ctx, PutDocument_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentServiceClient) GetDocument(ctx context.Context, in *GetDocumentRequest, opts ...grpc.CallOption) (*GetDocumentResponse, error) {
	out := new(GetDocumentResponse)
	if err := c.cc.Invoke(ctx, GetDocument_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentServiceClient) WatchDocument(ctx context.Context, in *WatchDocumentRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[DocumentEvent], error) {
	stream, err := c.cc.NewStream(ctx, &DocumentService_ServiceDesc.Streams[0], WatchDocument_FullMethodName, callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchDocumentRequest, DocumentEvent]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// DocumentServiceServer is the server API for DocumentService.
type DocumentServiceServer interface {
	RegisterUser(context.Context, *RegisterUserRequest) (*RegisterUserResponse, error)
	GetSalt(context.Context, *GetSaltRequest) (*GetSaltResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*RefreshTokenResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	PutDocument(context.Context, *PutDocumentRequest) (*PutDocumentResponse, error)
	GetDocument(context.Context, *GetDocumentRequest) (*GetDocumentResponse, error)
	WatchDocument(*WatchDocumentRequest, grpc.ServerStreamingServer[DocumentEvent]) error
}

// UnimplementedDocumentServiceServer can be embedded to get forward
// compatible implementations.
type UnimplementedDocumentServiceServer struct{}

func (UnimplementedDocumentServiceServer) RegisterUser(context.Context, *RegisterUserRequest) (*RegisterUserResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterUser not implemented")
}
func (UnimplementedDocumentServiceServer) GetSalt(context.Context, *GetSaltRequest) (*GetSaltResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSalt not implemented")
}
func (UnimplementedDocumentServiceServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedDocumentServiceServer) RefreshToken(context.Context, *RefreshTokenRequest) (*RefreshTokenResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RefreshToken not implemented")
}
func (UnimplementedDocumentServiceServer) Logout(context.Context, *LogoutRequest) (*LogoutResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
}
func (UnimplementedDocumentServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedDocumentServiceServer) PutDocument(context.Context, *PutDocumentRequest) (*PutDocumentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PutDocument not implemented")
}
func (UnimplementedDocumentServiceServer) GetDocument(context.Context, *GetDocumentRequest) (*GetDocumentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetDocument not implemented")
}
func (UnimplementedDocumentServiceServer) WatchDocument(*WatchDocumentRequest, grpc.ServerStreamingServer[DocumentEvent]) error {
	return status.Error(codes.Unimplemented, "method WatchDocument not implemented")
}

// RegisterDocumentServiceServer registers srv on s.
func RegisterDocumentServiceServer(s grpc.ServiceRegistrar, srv DocumentServiceServer) {
	s.RegisterService(&DocumentService_ServiceDesc, srv)
}

func unaryHandler[Req any](method string, call func(DocumentServiceServer, context.Context, *Req) (any, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DocumentServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DocumentServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchDocumentHandler(srv any, stream grpc.ServerStream) error {
	m := new(WatchDocumentRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(DocumentServiceServer).WatchDocument(m, &grpc.GenericServerStream[WatchDocumentRequest, DocumentEvent]{ServerStream: stream})
}

// DocumentService_ServiceDesc is the grpc.ServiceDesc for DocumentService.
var DocumentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterUser", Handler: unaryHandler(RegisterUser_FullMethodName, func(s DocumentServiceServer, ctx context.Context, in *RegisterUserRequest) (any, error) {
			return s.RegisterUser(ctx, in)
		})},
		{MethodName: "GetSalt", Handler: unaryHandler(GetSalt_FullMethodName, func(s DocumentServiceServer, ctx context.Context, in *GetSaltRequest) (any, error) {
			return s.GetSalt(ctx, in)
		})},
		{MethodName: "Login", Handler: unaryHandler(Login_FullMethodName, func(s DocumentServiceServer, ctx context.Context, in *LoginRequest) (any, error) {
			return s.Login(ctx, in)
		})},
		{MethodName: "RefreshToken", Handler: unaryHandler(RefreshToken_FullMethodName, func(s DocumentServiceServer, ctx context.Context, in *RefreshTokenRequest) (any, error) {
			return s.RefreshToken(ctx, in)
		})},
		{MethodName: "Logout", Handler: unaryHandler(Logout_FullMethodName, func(s DocumentServiceServer, ctx context.Context, in *LogoutRequest) (any, error) {
			return s.Logout(ctx, in)
		})},
		{MethodName: "Ping", Handler: unaryHandler(Ping_FullMethodName, func(s DocumentServiceServer, ctx context.Context, in *PingRequest) (any, error) {
			return s.Ping(ctx, in)
		})},
		{MethodName: "PutDocument", Handler: unaryHandler(PutDocument_FullMethodName, func(s DocumentServiceServer, ctx context.Context, in *PutDocumentRequest) (any, error) {
			return s.PutDocument(ctx, in)
		})},
		{MethodName: "GetDocument", Handler: unaryHandler(GetDocument_FullMethodName, func(s DocumentServiceServer, ctx context.Context, in *GetDocumentRequest) (any, error) {
			return s.GetDocument(ctx, in)
		})},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchDocument",
			Handler:       watchDocumentHandler,
			ServerStreams: true,
		},
	},
	Metadata: "growthvault/v1/document.json",
}
