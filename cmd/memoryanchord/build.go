package main

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kagent-dev/memoryanchor/internal/budget"
	"github.com/kagent-dev/memoryanchor/internal/conflict"
	"github.com/kagent-dev/memoryanchor/internal/config"
	"github.com/kagent-dev/memoryanchor/internal/embedding"
	"github.com/kagent-dev/memoryanchor/internal/env"
	"github.com/kagent-dev/memoryanchor/internal/identitystore"
	"github.com/kagent-dev/memoryanchor/internal/kernel"
	"github.com/kagent-dev/memoryanchor/internal/opsindex"
	"github.com/kagent-dev/memoryanchor/internal/pendingqueue"
	"github.com/kagent-dev/memoryanchor/internal/safety"
	"github.com/kagent-dev/memoryanchor/internal/vectorindex/factory"
	"github.com/kagent-dev/memoryanchor/internal/workingmemory"
)

// buildKernel wires one project directory's durable state into a
// Kernel, the same dependency set every subcommand (serve/status/
// doctor) needs. Grounded on the teacher's cmd/main.go pattern of
// assembling all collaborators in main before handing them to a
// server, generalized here to our own Deps struct instead of a
// controller-runtime manager.
func buildKernel(ctx context.Context, projectDir string, logger *zap.Logger) (*kernel.Kernel, error) {
	dir := config.ProjectDir{Root: projectDir}

	constitution, err := config.LoadConstitution(dir.ConstitutionPath())
	if err != nil {
		return nil, fmt.Errorf("load constitution: %w", err)
	}
	projectCfg, err := config.LoadProjectConfig(dir.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if projectCfg.VectorIndexMode == "" {
		projectCfg.VectorIndexMode = env.VectorIndexMode.Get()
	}
	if projectCfg.VectorIndexURL == "" {
		projectCfg.VectorIndexURL = env.VectorIndexURL.Get()
	}

	index, err := factory.New(ctx, projectCfg.VectorIndexConfig(projectDir, embedding.DefaultDimension))
	if err != nil {
		return nil, fmt.Errorf("build vector index: %w", err)
	}
	collection := env.DefaultCollection.Get()
	if err := index.EnsureCollection(ctx, collection, embedding.DefaultDimension, true); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	embedder, err := embedding.NewFromEnv(embedding.DefaultDimension)
	if err != nil {
		return nil, fmt.Errorf("build embedding provider: %w", err)
	}

	identityDB, err := gorm.Open(sqlite.Open(dir.IdentityDBPath()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	identity, err := identitystore.Open(identityDB)
	if err != nil {
		return nil, fmt.Errorf("init identity store: %w", err)
	}

	pendingDB, err := gorm.Open(sqlite.Open(dir.PendingDBPath()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open pending queue: %w", err)
	}
	pending, err := pendingqueue.Open(pendingDB)
	if err != nil {
		return nil, fmt.Errorf("init pending queue: %w", err)
	}

	return kernel.New(kernel.Deps{
		Index:        index,
		Collection:   collection,
		Embedder:     embedder,
		Pending:      pending,
		Identity:     identity,
		Cache:        workingmemory.New(0),
		Budget:       budget.New(budget.DefaultLimits()),
		Safety:       safety.New(safety.ConfigFromEnv()),
		Conflict:     conflict.New(index, conflict.ConfigFromEnv()),
		Constitution: constitution,
		ProjectID:    projectCfg.ProjectID,
		Logger:       logger,
		Ops:          opsindex.New(dir.OperationsDir()),
	}), nil
}
