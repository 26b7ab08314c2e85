// Package llmpb holds the generated protobuf/gRPC bindings for
// ../llm.proto. Run `make proto` to generate llm.pb.go and
// llm_grpc.pb.go from protoc-gen-go and protoc-gen-go-grpc; neither is
// checked in, produced by the build pipeline rather than committed to
// source control. pkg/llm/grpc_client.go, which depends on these
// bindings, only compiles with `-tags grpc`.
package llmpb
