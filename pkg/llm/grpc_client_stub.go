//go:build !grpc

package llm

import (
	"context"
	"fmt"
)

// GRPCClient is the default-build stand-in for the real gRPC client in
// grpc_client.go, which depends on generated protobuf bindings that
// aren't checked in (see proto/llmpb/doc.go) and is only compiled with
// `-tags grpc`. NewGRPCClient here fails immediately and clearly rather
// than letting a caller discover the missing bindings at a type-check
// error deep in the proto package.
type GRPCClient struct{}

// GRPCClientOption configures a GRPCClient at construction.
type GRPCClientOption func(*GRPCClient)

// WithModel overrides the default model name sent on every request.
func WithModel(model string) GRPCClientOption { return func(*GRPCClient) {} }

// WithTemperature sets a fixed sampling temperature.
func WithTemperature(temp float32) GRPCClientOption { return func(*GRPCClient) {} }

// WithMaxTokens caps the response length.
func WithMaxTokens(max int32) GRPCClientOption { return func(*GRPCClient) {} }

// NewGRPCClient always fails in this build; rebuild with `-tags grpc`
// after running `make proto` to enable the real gRPC client.
func NewGRPCClient(addr string, opts ...GRPCClientOption) (*GRPCClient, error) {
	return nil, fmt.Errorf("engine built without grpc support: rebuild with -tags grpc, or set use_direct_anthropic")
}

// Generate always fails; see NewGRPCClient.
func (c *GRPCClient) Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error) {
	return nil, fmt.Errorf("grpc client unavailable in this build")
}

// Complete always fails; see NewGRPCClient.
func (c *GRPCClient) Complete(ctx context.Context, input CompleteInput) (CompleteOutput, error) {
	return CompleteOutput{}, fmt.Errorf("grpc client unavailable in this build")
}

// Close is a no-op on the stub client.
func (c *GRPCClient) Close() error { return nil }
