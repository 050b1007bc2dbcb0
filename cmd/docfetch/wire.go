package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/entrhq/docfetch/pkg/batch"
	"github.com/entrhq/docfetch/pkg/browser"
	"github.com/entrhq/docfetch/pkg/config"
	"github.com/entrhq/docfetch/pkg/document"
	"github.com/entrhq/docfetch/pkg/output"
	"github.com/entrhq/docfetch/pkg/storage"
)

// buildOrchestrator assembles the batch pipeline from cfg. rec may be nil.
func buildOrchestrator(ctx context.Context, cfg *config.Config, logger *zap.Logger, rec batch.Recorder) (*batch.Orchestrator, error) {
	launcher, err := browser.NewLauncher(browser.Options{
		Driver:     cfg.Browser.Driver,
		Headless:   cfg.Browser.Headless,
		Install:    cfg.Browser.Install,
		BinaryPath: cfg.Browser.BinaryPath,
		Viewport: &browser.Viewport{
			Width:  cfg.Browser.ViewportWidth,
			Height: cfg.Browser.ViewportHeight,
		},
		NavigationTimeout: cfg.Timeouts.Navigation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser launcher: %w", err)
	}

	validator, err := batch.NewValidator(cfg.Batch.MaxItems, cfg.Batch.IdentifierPatterns)
	if err != nil {
		return nil, err
	}

	sessions := batch.NewSessionManager(launcher, cfg.Portal.Credentials, cfg.Portal.Selectors, cfg.Timeouts.Login, logger)
	processor := batch.NewItemProcessor(cfg.Portal.Selectors, cfg.Timeouts, cfg.Browser.TypeDelay, logger).
		WithValidator(document.NewPDFValidator())
	recovery := batch.NewRecoveryController(cfg.Portal.URL, cfg.Timeouts.Recovery, logger)
	resolver := output.NewResolver(cfg.Output.ShareRoot, cfg.Output.Subpath, cfg.Output.Extension)

	orch := batch.NewOrchestrator(sessions, processor, recovery, resolver, logger).
		WithValidator(validator).
		WithRecorder(rec)

	if cfg.Mirror.Enabled {
		mirror, err := storage.NewS3Mirror(storage.Config{
			Endpoint:        cfg.Mirror.Endpoint,
			AccessKeyID:     cfg.Mirror.AccessKeyID,
			SecretAccessKey: cfg.Mirror.SecretAccessKey,
			Bucket:          cfg.Mirror.Bucket,
			Region:          cfg.Mirror.Region,
			Prefix:          cfg.Mirror.Prefix,
			UseSSL:          cfg.Mirror.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create mirror: %w", err)
		}
		if err := mirror.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		orch.WithMirror(mirror)
		logger.Info("mirroring documents", zap.String("bucket", cfg.Mirror.Bucket))
	}

	if cfg.Reports.Enabled {
		orch.WithArtifacts(batch.NewArtifactWriter(cfg.Reports.OutputDir))
	}

	return orch, nil
}
