// Package ordernumber assigns unique, human-readable order identifiers of the
// form ORD-YYMMDD-SEQ, where SEQ is a per-day counter.
package ordernumber

import (
	"context"
	"fmt"
	"time"

	"github.com/emmanuelselicour/ES-Company-API/internal/repository"
)

type Generator struct {
	counters repository.CounterRepository
	now      func() time.Time
}

func NewGenerator(counters repository.CounterRepository) *Generator {
	return &Generator{counters: counters, now: time.Now}
}

// Next produces the next order number. The sequence comes from an atomic
// increment-and-read on a per-day counter document, never from inspecting the
// last stored order, so concurrent checkouts cannot mint duplicates.
func (g *Generator) Next(ctx context.Context) (string, error) {
	day := g.now().Format("060102")

	seq, err := g.counters.Next(ctx, "ord-"+day)
	if err != nil {
		return "", fmt.Errorf("failed to generate order number: %w", err)
	}

	return fmt.Sprintf("ORD-%s-%03d", day, seq), nil
}
