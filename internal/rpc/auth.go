package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const AuthServiceName = "taskmaster.Auth"

const (
	AuthCreateAccountMethod     = "/taskmaster.Auth/CreateAccount"
	AuthSignInMethod            = "/taskmaster.Auth/SignIn"
	AuthSignOutMethod           = "/taskmaster.Auth/SignOut"
	AuthUpdateDisplayNameMethod = "/taskmaster.Auth/UpdateDisplayName"
	AuthMeMethod                = "/taskmaster.Auth/Me"
)

type AuthServer interface {
	CreateAccount(context.Context, *CreateAccountRequest) (*AuthResponse, error)
	SignIn(context.Context, *SignInRequest) (*AuthResponse, error)
	SignOut(context.Context, *SignOutRequest) (*SignOutResponse, error)
	UpdateDisplayName(context.Context, *UpdateDisplayNameRequest) (*AccountResponse, error)
	Me(context.Context, *MeRequest) (*AccountResponse, error)
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(AuthServiceName, "CreateAccount", AuthServer.CreateAccount),
		unaryMethod(AuthServiceName, "SignIn", AuthServer.SignIn),
		unaryMethod(AuthServiceName, "SignOut", AuthServer.SignOut),
		unaryMethod(AuthServiceName, "UpdateDisplayName", AuthServer.UpdateDisplayName),
		unaryMethod(AuthServiceName, "Me", AuthServer.Me),
	},
	Metadata: "taskmaster/auth",
}

func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

type AuthClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthClient(cc grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{cc: cc}
}

func (c *AuthClient) CreateAccount(ctx context.Context, in *CreateAccountRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, AuthCreateAccountMethod, in, opts)
}

func (c *AuthClient) SignIn(ctx context.Context, in *SignInRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, AuthSignInMethod, in, opts)
}

func (c *AuthClient) SignOut(ctx context.Context, in *SignOutRequest, opts ...grpc.CallOption) (*SignOutResponse, error) {
	return invoke[SignOutResponse](ctx, c.cc, AuthSignOutMethod, in, opts)
}

func (c *AuthClient) UpdateDisplayName(ctx context.Context, in *UpdateDisplayNameRequest, opts ...grpc.CallOption) (*AccountResponse, error) {
	return invoke[AccountResponse](ctx, c.cc, AuthUpdateDisplayNameMethod, in, opts)
}

func (c *AuthClient) Me(ctx context.Context, in *MeRequest, opts ...grpc.CallOption) (*AccountResponse, error) {
	return invoke[AccountResponse](ctx, c.cc, AuthMeMethod, in, opts)
}
