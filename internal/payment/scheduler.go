package payment

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/Zenkai92/Modelify/internal/projects/service"
)

// Scheduler runs the periodic payment reconciliation sweep: projects stuck in
// "paiement_attente" are settled against the provider even when neither the
// redirect nor the webhook ever arrived.
type Scheduler struct {
	lifecycle *service.Lifecycle
	schedule  string
	cron      *cron.Cron
}

func NewScheduler(lifecycle *service.Lifecycle, schedule string) *Scheduler {
	return &Scheduler{lifecycle: lifecycle, schedule: schedule}
}

// Start initializes the cron task. The schedule uses the six-field form with
// seconds; the default is the top of every hour.
func (s *Scheduler) Start() {
	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc(s.schedule, func() {
		if err := s.lifecycle.ReconcilePending(context.Background()); err != nil {
			log.Printf("Payment reconciliation sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("Failed to create reconciliation cron job: %v", err)
		return
	}

	log.Printf("Payment reconciliation scheduler started (schedule %q)", s.schedule)
	c.Start()
	s.cron = c
}

// Stop halts the scheduler; the running sweep, if any, finishes first.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
