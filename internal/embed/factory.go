package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ProviderType names an embedder implementation.
type ProviderType string

const (
	// ProviderRemote calls an external HTTP embedding model (Ollama-shaped
	// contract: POST /api/embed).
	ProviderRemote ProviderType = "remote"

	// ProviderStatic uses hash-based embeddings; no network, no model.
	ProviderStatic ProviderType = "static"
)

// NewEmbedder constructs an embedder for the given provider and wraps it
// with an LRU cache unless VECTORFS_EMBED_CACHE disables that. The
// VECTORFS_EMBEDDER environment variable overrides provider selection.
func NewEmbedder(ctx context.Context, provider ProviderType, cfg RemoteConfig) (Embedder, error) {
	if envProvider := os.Getenv("VECTORFS_EMBEDDER"); envProvider != "" {
		provider = ProviderType(strings.ToLower(envProvider))
	}

	var embedder Embedder
	var err error

	switch provider {
	case ProviderRemote:
		embedder, err = NewRemoteEmbedder(ctx, cfg)
	case ProviderStatic:
		embedder = NewStaticEmbedder(cfg.Dimensions)
	default:
		embedder, err = NewRemoteEmbedder(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}
	return embedder, nil
}

func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("VECTORFS_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// ParseProvider converts a string to ProviderType, defaulting to remote.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "static":
		return ProviderStatic
	case "remote", "ollama":
		return ProviderRemote
	default:
		return ProviderRemote
	}
}

func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{string(ProviderRemote), string(ProviderStatic)}
}

// IsValidProvider checks if a provider name is valid.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo describes a constructed embedder, used by status reporting.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo reports the effective provider, unwrapping a CachedEmbedder.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *RemoteEmbedder:
		info.Provider = ProviderRemote
	default:
		info.Provider = ProviderStatic
	}
	return info
}

// MustNewEmbedder creates an embedder and panics on failure. For tests and
// process startup paths where failure is fatal.
func MustNewEmbedder(ctx context.Context, provider ProviderType, cfg RemoteConfig) Embedder {
	embedder, err := NewEmbedder(ctx, provider, cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}
