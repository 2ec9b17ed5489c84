package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// SeedMessage is reported after a successful seed.
const SeedMessage = "Database seeded successfully"

// sampleOrders is the fixed batch inserted by Seed.
var sampleOrders = []struct {
	patient     string
	destination string
	time        string
}{
	{"John Doe", "Radiology", "10:30 AM"},
	{"Jane Smith", "Emergency", "11:15 AM"},
	{"Robert Johnson", "Cardiology", "12:00 PM"},
}

// SeedService populates the order store with sample pending orders.
type SeedService struct {
	orders repository.OrderRepository
	log    *zap.Logger
	now    func() time.Time
}

// NewSeedService creates a new SeedService.
func NewSeedService(orders repository.OrderRepository, log *zap.Logger) *SeedService {
	return &SeedService{orders: orders, log: log, now: time.Now}
}

// Seed inserts the sample batch. Repeated calls insert duplicate rows.
func (s *SeedService) Seed(ctx context.Context) (string, error) {
	now := s.now()

	orders := make([]*domain.Order, 0, len(sampleOrders))
	for _, o := range sampleOrders {
		orders = append(orders, &domain.Order{
			Patient:     o.patient,
			Destination: o.destination,
			Time:        o.time,
			Status:      domain.OrderStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if err := s.orders.InsertMany(ctx, orders); err != nil {
		s.log.Error("failed to seed orders", zap.Error(err))
		return "", fmt.Errorf("%w: seed orders: %w", ErrRemoteWrite, err)
	}

	s.log.Info("seeded sample orders", zap.Int("count", len(orders)))
	return SeedMessage, nil
}
