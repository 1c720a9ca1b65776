// Package grpcbackend implements inference.LLMClient against a remote
// inference service over gRPC, the way the teacher's pkg/agent/llm_grpc.go
// talks to its Python LLM sidecar — a plaintext local/sidecar connection,
// a server-streaming RPC, and a background goroutine translating wire
// chunks into inference.Chunk values.
//
// Generated protobuf message stubs are deliberately not hand-authored
// here (see DESIGN.md: fabricating .pb.go without running protoc would be
// indistinguishable from a vendored fake). Instead the envelope is a
// google.golang.org/protobuf/types/known/structpb.Struct — a real,
// already-generated protobuf message shipped by the protobuf module
// itself — carried over a raw grpc.ClientConn.NewStream call, which is a
// fully supported, codegen-free way to drive gRPC.
package grpcbackend

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tarsiersync/forgecode/pkg/inference"
)

const generateMethod = "/forgecode.inference.v1.InferenceService/Generate"

// Client implements inference.LLMClient by calling a remote inference
// service via gRPC.
type Client struct {
	conn *grpc.ClientConn
}

// New dials addr with insecure (plaintext) transport — the service is
// expected to run as a sidecar or on localhost, mirroring the teacher's
// own NewGRPCLLMClient comment about the same tradeoff.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpcbackend: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the gRPC connection.
func (c *Client) Close() error { return c.conn.Close() }

// Generate opens a server-streaming call and translates each response
// envelope into an inference.Chunk.
func (c *Client) Generate(ctx context.Context, input inference.GenerateInput) (<-chan inference.Chunk, error) {
	req, err := structpb.NewStruct(requestToMap(input))
	if err != nil {
		return nil, fmt.Errorf("grpcbackend: encode request: %w", err)
	}

	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{StreamName: "Generate", ServerStreams: true}, generateMethod)
	if err != nil {
		return nil, fmt.Errorf("grpcbackend: open stream: %w", err)
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, fmt.Errorf("grpcbackend: send request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("grpcbackend: close send: %w", err)
	}

	ch := make(chan inference.Chunk, 32)
	go func() {
		defer close(ch)
		for {
			resp := &structpb.Struct{}
			err := stream.RecvMsg(resp)
			if err == io.EOF {
				return
			}
			if err != nil {
				if status.Code(err) == codes.Canceled {
					return
				}
				select {
				case ch <- &inference.ErrorChunk{Message: err.Error(), Retryable: isRetryable(err)}:
				case <-ctx.Done():
				}
				return
			}
			chunk := mapToChunk(resp.AsMap())
			if chunk == nil {
				continue
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func isRetryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
