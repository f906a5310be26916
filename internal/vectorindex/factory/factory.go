// Package factory selects a concrete vectorindex.Index from explicit
// configuration. It is kept separate from package vectorindex itself to
// avoid an import cycle (the embedded/remote implementations import the
// vectorindex contract they satisfy).
package factory

import (
	"context"
	"fmt"

	"github.com/kagent-dev/memoryanchor/internal/embedding"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex/embedded"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex/remote"
)

// Mode is the vector index deployment mode. There is no silent fallback
// between modes: an unrecognized or misconfigured mode is an error.
type Mode string

const (
	ModeEmbedded Mode = "embedded"
	ModeRemote   Mode = "remote"
)

// Config selects and parameterizes a vectorindex.Index.
type Config struct {
	Mode Mode

	// EmbeddedDir is the directory holding one sqlite file per project
	// collection. Used only when Mode == ModeEmbedded.
	EmbeddedDir string

	// RemoteDSN is the Postgres connection string. Used only when
	// Mode == ModeRemote.
	RemoteDSN string

	// Dimension is the embedding vector width passed to remote.Open. The
	// remote pgvector column type is fixed at vector(384) and does not
	// follow this value.
	Dimension int
}

// New builds the configured Index. It never falls back silently: an
// unknown mode or a failed remote connection is a hard error.
func New(ctx context.Context, cfg Config) (vectorindex.Index, error) {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = embedding.DefaultDimension
	}

	switch cfg.Mode {
	case ModeEmbedded:
		return embedded.New(cfg.EmbeddedDir), nil
	case ModeRemote:
		return remote.Open(ctx, cfg.RemoteDSN, dim)
	default:
		return nil, fmt.Errorf("%w: %q", vectorindex.ErrUnknownMode, cfg.Mode)
	}
}
