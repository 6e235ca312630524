package withdrawals

import (
	"context"
	"fmt"
	"time"

	"github.com/tradebazaar/finance-backend/pkg/logger"
)

const workerBatchSize = 50

// Worker polls for unsettled withdrawals and drives them to a terminal
// state. Because Process tolerates requests already in processing, a
// restart mid-settlement simply picks the request up again.
type Worker struct {
	service  Service
	repo     Repository
	logger   *logger.Logger
	interval time.Duration
}

// NewWorker builds the settlement worker.
func NewWorker(service Service, repo Repository, logg *logger.Logger, interval time.Duration) (*Worker, error) {
	if service == nil {
		return nil, fmt.Errorf("withdrawals service required")
	}
	if repo == nil {
		return nil, fmt.Errorf("withdrawals repository required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	return &Worker{
		service:  service,
		repo:     repo,
		logger:   logg,
		interval: interval,
	}, nil
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	requests, err := w.repo.ListUnsettled(ctx, workerBatchSize)
	if err != nil {
		if w.logger != nil {
			w.logger.Error(ctx, "listing unsettled withdrawals", err)
		}
		return
	}

	for _, request := range requests {
		if ctx.Err() != nil {
			return
		}
		reqCtx := ctx
		if w.logger != nil {
			reqCtx = w.logger.WithField(ctx, "withdrawal_id", request.ID.String())
		}
		settled, err := w.service.Process(reqCtx, request.ID)
		if err != nil {
			if w.logger != nil {
				w.logger.Error(reqCtx, "processing withdrawal", err)
			}
			continue
		}
		if w.logger != nil {
			reqCtx = w.logger.WithField(reqCtx, "status", settled.Status.String())
			w.logger.Info(reqCtx, "withdrawal settled")
		}
	}
}
