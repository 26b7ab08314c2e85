//go:build grpc

// GRPCClient depends on the generated bindings in proto/llmpb, which
// `make proto` produces but does not check in (see proto/llmpb/doc.go).
// It is excluded from the default build behind the "grpc" tag above,
// the same way pkg/repository/postgres.go is gated behind "postgres";
// build with `-tags grpc` once llm.pb.go/llm_grpc.pb.go exist locally.
package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	pb "github.com/recallhq/engine/proto/llmpb"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCClient implements Client over a gRPC connection to the LLM
// provider side-car described by proto/llm.proto.
type GRPCClient struct {
	conn        *grpc.ClientConn
	client      pb.LLMServiceClient
	model       string
	temperature *float32
	maxTokens   *int32
	logger      *slog.Logger
}

// GRPCClientOption configures a GRPCClient at construction.
type GRPCClientOption func(*GRPCClient)

// WithModel overrides the default model name sent on every request.
func WithModel(model string) GRPCClientOption {
	return func(c *GRPCClient) { c.model = model }
}

// WithTemperature sets a fixed sampling temperature.
func WithTemperature(temp float32) GRPCClientOption {
	return func(c *GRPCClient) { c.temperature = &temp }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(max int32) GRPCClientOption {
	return func(c *GRPCClient) { c.maxTokens = &max }
}

// NewGRPCClient dials the LLM service at addr and returns a ready Client.
func NewGRPCClient(addr string, opts ...GRPCClientOption) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to llm service: %w", err)
	}

	c := &GRPCClient{
		conn:   conn,
		client: pb.NewLLMServiceClient(conn),
		model:  "claude-sonnet",
		logger: slog.Default().With("component", "llm.grpc_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the gRPC connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) pbMessages(messages []ConversationMessage) []*pb.Message {
	out := make([]*pb.Message, len(messages))
	for i, m := range messages {
		out[i] = &pb.Message{Role: pbRole(m.Role), Content: m.Content}
	}
	return out
}

// Generate streams a tutor turn, translating gRPC chunks into the
// package's Chunk sum type. The returned channel is closed when the
// stream completes or the context is cancelled.
func (c *GRPCClient) Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error) {
	model := input.Model
	if model == "" {
		model = c.model
	}

	req := &pb.GenerateRequest{
		SessionId:   input.SessionID,
		Messages:    c.pbMessages(input.Messages),
		Model:       model,
		Temperature: firstNonNil(input.Temperature, c.temperature),
		MaxTokens:   firstNonNilInt32(input.MaxTokens, c.maxTokens),
	}

	stream, err := c.client.GenerateStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("start generate stream: %w", err)
	}

	chunks := make(chan Chunk, 64)
	go func() {
		defer close(chunks)
		for {
			msg, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case chunks <- &ErrorChunk{Message: err.Error(), Retryable: false}:
				case <-ctx.Done():
				}
				return
			}

			chunk := fromPBChunk(msg)
			if chunk == nil {
				continue
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}

// Complete blocks for a full, non-streaming response — used by the
// evaluator and transcription pipeline, both bound to a cheaper model.
func (c *GRPCClient) Complete(ctx context.Context, input CompleteInput) (CompleteOutput, error) {
	model := input.Model
	if model == "" {
		model = c.model
	}

	req := &pb.CompleteRequest{
		SessionId:   input.SessionID,
		Messages:    c.pbMessages(input.Messages),
		Model:       model,
		Temperature: firstNonNil(input.Temperature, c.temperature),
		MaxTokens:   firstNonNilInt32(input.MaxTokens, c.maxTokens),
	}

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return CompleteOutput{}, fmt.Errorf("complete: %w", err)
	}

	return CompleteOutput{
		Content:      resp.Content,
		InputTokens:  int(resp.InputTokens),
		OutputTokens: int(resp.OutputTokens),
	}, nil
}

func fromPBChunk(msg *pb.Chunk) Chunk {
	switch msg.Type {
	case pb.ChunkType_CHUNK_TYPE_TEXT:
		return &TextChunk{Content: msg.Content}
	case pb.ChunkType_CHUNK_TYPE_USAGE:
		return &UsageChunk{
			InputTokens:  int(msg.InputTokens),
			OutputTokens: int(msg.OutputTokens),
			TotalTokens:  int(msg.InputTokens + msg.OutputTokens),
		}
	case pb.ChunkType_CHUNK_TYPE_ERROR:
		return &ErrorChunk{Message: msg.ErrorMessage, Retryable: msg.Retryable}
	default:
		return nil
	}
}

func pbRole(role string) pb.Role {
	switch role {
	case RoleSystem:
		return pb.Role_ROLE_SYSTEM
	case RoleUser:
		return pb.Role_ROLE_USER
	case RoleAssistant:
		return pb.Role_ROLE_ASSISTANT
	default:
		return pb.Role_ROLE_UNSPECIFIED
	}
}

func firstNonNil(a, b *float32) *float32 {
	if a != nil {
		return a
	}
	return b
}

func firstNonNilInt32(a, b *int32) *int32 {
	if a != nil {
		return a
	}
	return b
}
