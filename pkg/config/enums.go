package config

// LLMBackendType selects which inference.LLMClient implementation an
// LLMProviderConfig resolves to (§4.G).
type LLMBackendType string

const (
	// LLMBackendGRPC dials a sidecar process over gRPC
	// (pkg/inference/grpcbackend).
	LLMBackendGRPC LLMBackendType = "grpc"
	// LLMBackendAnthropic calls the Anthropic API directly
	// (pkg/inference/anthropicbackend).
	LLMBackendAnthropic LLMBackendType = "anthropic"
)

// IsValid checks if the backend type is one of the two wired
// implementations.
func (t LLMBackendType) IsValid() bool {
	return t == LLMBackendGRPC || t == LLMBackendAnthropic
}
