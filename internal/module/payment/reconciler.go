package payment

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reconciler periodically sweeps pending payments whose webhooks never
// arrived, verifying them live against their gateway.
type Reconciler struct {
	service  *Service
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewReconciler creates a new reconciler.
func NewReconciler(service *Service, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval == 0 {
		interval = 10 * time.Minute
	}
	return &Reconciler{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the reconcile loop until Stop is called or ctx ends.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop stops the reconcile loop and waits for the current sweep to finish.
func (r *Reconciler) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.service.Reconcile(ctx); err != nil {
				r.logger.Error("reconcile sweep failed", zap.Error(err))
			}
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
