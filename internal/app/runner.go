package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/samvad-hq/rawfetch/internal/config"
	"github.com/samvad-hq/rawfetch/internal/domain"
	"github.com/samvad-hq/rawfetch/internal/dump"
	"github.com/samvad-hq/rawfetch/internal/fetcher"
	"github.com/samvad-hq/rawfetch/internal/inspect"
	"github.com/samvad-hq/rawfetch/internal/logger"
	"github.com/samvad-hq/rawfetch/internal/storage"
	"github.com/samvad-hq/rawfetch/pkg/publishers"
	"github.com/samvad-hq/rawfetch/pkg/targets"
)

// Runner represents the fetch runtime. It fetches every target in order,
// dumps each raw result, and optionally records history and publishes events.
type Runner struct {
	cfg      *config.Config
	targets  []domain.Target
	fetcher  *fetcher.Service
	dumper   *dump.Dumper
	fanout   *publishers.Fanout
	store    storage.Store
	out      io.Writer
	interval time.Duration
	log      logger.Logger
}

// Deps lets callers override the runtime collaborators; zero values select defaults.
type Deps struct {
	Out           io.Writer
	ClientFactory fetcher.ClientFactory
	Publishers    []publishers.Publisher
}

// NewRunner builds a runner from config.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger, deps Deps) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}

	targetReg, err := loadTargets(cfg)
	if err != nil {
		return nil, err
	}
	targetList := targetReg.DomainTargets()
	targetIDs := make([]string, 0, len(targetList))
	for _, t := range targetList {
		targetIDs = append(targetIDs, t.ID)
	}
	log.InfoObj("targets loaded", "targets_meta", map[string]any{
		"count": len(targetIDs),
		"ids":   targetIDs,
	})

	dumper, err := dump.New(cfg.DumpFormat)
	if err != nil {
		return nil, fmt.Errorf("init dumper: %w", err)
	}

	pubs := deps.Publishers
	if pubs == nil && cfg.PublishersFile != "" {
		pubs, err = buildPublishers(ctx, cfg.PublishersFile, log)
		if err != nil {
			return nil, err
		}
	}
	fanout := publishers.NewFanout(pubs)

	storeOpts := storage.Options{
		RecordTTL:       cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storeOpts)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init storage: %w", err), fanout.Close())
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"record_ttl_seconds":       int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	fetchSvc := fetcher.NewService(deps.ClientFactory, fetcher.Options{
		TotalTimeout:    cfg.TotalTimeout,
		FollowRedirects: cfg.FollowRedirects,
	}, log)

	return &Runner{
		cfg:      cfg,
		targets:  targetList,
		fetcher:  fetchSvc,
		dumper:   dumper,
		fanout:   fanout,
		store:    store,
		out:      deps.Out,
		interval: cfg.Interval,
		log:      log,
	}, nil
}

func loadTargets(cfg *config.Config) (*targets.Registry, error) {
	if cfg.URL != "" {
		reg, err := targets.FromURL(cfg.URL, cfg.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("build target from url: %w", err)
		}
		return reg, nil
	}
	reg, err := targets.LoadRegistry(cfg.TargetsFile, cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("load targets registry: %w", err)
	}
	return reg, nil
}

func buildPublishers(ctx context.Context, path string, log logger.Logger) ([]publishers.Publisher, error) {
	publisherReg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return pubs, nil
}

// Run performs one pass over the targets, then repeats every interval until
// the context is cancelled when an interval is configured.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.fetcher == nil {
		return fmt.Errorf("runner is not initialized")
	}
	defer r.close()

	err := r.runOnce(ctx)
	if r.interval <= 0 {
		return err
	}
	if err != nil {
		r.log.ErrorObj("initial fetch pass failed", "error", err)
	}

	r.log.InfoObj("fetch loop starting", "runner_state", map[string]any{
		"targets_count":    len(r.targets),
		"publishers_count": r.fanout.Size(),
		"interval":         r.interval.String(),
	})

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("fetch loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx); err != nil {
				r.log.ErrorObj("scheduled fetch pass failed", "error", err)
			}
		}
	}
}

// runOnce fetches and handles every target. Transfer failures only become an
// error when fail_on_error is set; output and delivery failures always do.
func (r *Runner) runOnce(ctx context.Context) error {
	start := time.Now()
	var errs []error
	failed := 0

	results := r.fetcher.FetchAll(ctx, r.targets, func(res domain.Result) {
		if !res.OK() {
			failed++
			if r.cfg.FailOnError {
				errs = append(errs, res.Err)
			}
		}
		if err := r.handle(ctx, res); err != nil {
			errs = append(errs, err)
		}
	})

	r.log.InfoObj("fetch pass completed", "pass_meta", map[string]any{
		"targets_count": len(r.targets),
		"fetched":       len(results),
		"failed":        failed,
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return errors.Join(errs...)
}

func (r *Runner) handle(ctx context.Context, res domain.Result) error {
	if err := r.dumper.Dump(r.out, res); err != nil {
		return fmt.Errorf("dump %s: %w", res.TargetID, err)
	}

	if r.cfg.InspectHTML && inspect.IsHTML(res) {
		if meta, err := inspect.Summarize(res); err != nil {
			r.log.WarnObj("html inspection failed", "inspect_error", map[string]any{
				"target_id": res.TargetID,
				"error":     err.Error(),
			})
		} else if !meta.Empty() {
			r.log.InfoObj("html inspected", "page_meta", map[string]any{
				"target_id":   res.TargetID,
				"title":       meta.Title,
				"description": meta.Description,
				"image_url":   meta.ImageURL,
			})
		}
	}

	r.recordHistory(res)

	if r.fanout.Size() > 0 {
		delivered, err := r.fanout.Publish(ctx, publishers.NewEvent(res))
		if err != nil {
			return fmt.Errorf("publish %s (%d delivered): %w", res.TargetID, delivered, err)
		}
	}
	return nil
}

// recordHistory stores the outcome and logs when the payload changed since the last fetch.
func (r *Runner) recordHistory(res domain.Result) {
	rec := storage.NewRecord(res)
	prev, found, err := r.store.Last(res.TargetID)
	if err != nil {
		r.log.WarnObj("history lookup failed", "storage_error", map[string]any{
			"target_id": res.TargetID,
			"error":     err.Error(),
		})
	} else if found && prev.BodySHA1 != rec.BodySHA1 {
		r.log.InfoObj("payload changed since last fetch", "history_diff", map[string]any{
			"target_id":       res.TargetID,
			"previous_sha1":   prev.BodySHA1,
			"current_sha1":    rec.BodySHA1,
			"previous_status": prev.StatusCode,
			"current_status":  rec.StatusCode,
		})
	}
	if err := r.store.Record(rec); err != nil {
		r.log.WarnObj("history record failed", "storage_error", map[string]any{
			"target_id": res.TargetID,
			"error":     err.Error(),
		})
	}
}

// close releases the store and publisher clients, logging any errors encountered.
func (r *Runner) close() {
	if err := r.store.Close(); err != nil {
		r.log.ErrorObj("storage close failed", "error", err)
	}
	if err := r.fanout.Close(); err != nil {
		r.log.ErrorObj("publishers close failed", "error", err)
	}
}
