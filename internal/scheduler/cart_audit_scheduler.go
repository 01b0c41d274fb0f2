package scheduler

import (
	"github.com/dmills/storefront-backend/internal/app/service"
	"github.com/dmills/storefront-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// CartAuditScheduler periodically recomputes stored cart totals from their
// lines and repairs any drift, e.g. after a manual data fix or a pricing
// rule rollout.
type CartAuditScheduler struct {
	cron        *cron.Cron
	cartService service.CartService
}

func NewCartAuditScheduler(cartService service.CartService) *CartAuditScheduler {
	return &CartAuditScheduler{
		cron:        cron.New(),
		cartService: cartService,
	}
}

// Start registers the nightly audit job and starts the cron runner.
func (s *CartAuditScheduler) Start() error {
	// Nightly at 4 AM, when cart write traffic is lowest
	_, err := s.cron.AddFunc("0 4 * * *", func() {
		logger.Info("Starting scheduled cart totals audit", nil)

		repaired, err := s.cartService.AuditCartTotals()
		if err != nil {
			logger.Error("Cart totals audit failed", err, nil)
			return
		}

		logger.Info("Cart totals audit completed", map[string]interface{}{
			"repaired": repaired,
		})
	})

	if err != nil {
		logger.Error("Failed to add cron job for cart totals audit", err, nil)
		return err
	}

	s.cron.Start()
	logger.Info("Cart audit scheduler started successfully (daily at 4:00 AM)", nil)

	return nil
}

// Stop stops the scheduler
func (s *CartAuditScheduler) Stop() {
	logger.Info("Stopping cart audit scheduler...", nil)
	s.cron.Stop()
	logger.Info("Cart audit scheduler stopped", nil)
}
