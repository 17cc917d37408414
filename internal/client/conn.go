// Package client talks to the taskmaster backend over gRPC. It provides the
// identity provider and document store the app core runs on.
package client

import (
	"github.com/Novip1906/taskmaster/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial opens a lazy connection to the backend using the JSON codec.
func Dial(address string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpc.CodecName)),
	}, opts...)
	return grpc.NewClient(address, opts...)
}
