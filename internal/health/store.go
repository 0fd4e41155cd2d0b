package health

import (
	"context"
	"fmt"

	"github.com/zsiec/mediatime/internal/timeline"
	"github.com/zsiec/mediatime/pkg/mediatime"
)

// StoreChecker verifies the timeline store answers a List.
type StoreChecker struct {
	store timeline.Store
}

// NewStoreChecker creates a checker for store.
func NewStoreChecker(store timeline.Store) *StoreChecker {
	return &StoreChecker{store: store}
}

func (s *StoreChecker) Name() string { return "timeline_store" }

func (s *StoreChecker) Check(ctx context.Context) error {
	if _, err := s.store.List(ctx); err != nil {
		return fmt.Errorf("timeline store list failed: %w", err)
	}
	return nil
}

// ArithmeticChecker evaluates a few known identities of the time library. It
// guards against a broken build rather than a broken dependency.
type ArithmeticChecker struct{}

func (ArithmeticChecker) Name() string { return "arithmetic" }

func (ArithmeticChecker) Check(context.Context) error {
	sum := mediatime.New(1, 3).Add(mediatime.New(1, 6))
	if !sum.Equal(mediatime.New(1, 2)) {
		return fmt.Errorf("1/3 + 1/6 gave %v", sum)
	}
	if !mediatime.PositiveInfinity().Add(mediatime.NegativeInfinity()).IsInvalid() {
		return fmt.Errorf("+inf + -inf is not invalid")
	}
	rescaled := mediatime.New(1001, 30000).ToTimeScale(90000, mediatime.RoundHalfAwayFromZero)
	if rescaled.TimeValue() != 3003 || rescaled.HasBeenRounded() {
		return fmt.Errorf("1001/30000 at 90kHz gave %v", rescaled)
	}
	return nil
}
