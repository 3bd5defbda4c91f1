package service

import (
	"context"
	"errors"

	"github.com/GoPolymarket/arena/internal/model"
)

// TradeNotifier delivers TradeRecorded notifications to observers outside the ledger.
type TradeNotifier interface {
	Publish(ctx context.Context, ev *model.TradeRecorded) error
}

// MultiNotifier fans one notification out to every notifier, joining their errors.
type MultiNotifier []TradeNotifier

func (m MultiNotifier) Publish(ctx context.Context, ev *model.TradeRecorded) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifierFunc adapts a function to TradeNotifier.
type NotifierFunc func(ctx context.Context, ev *model.TradeRecorded) error

func (f NotifierFunc) Publish(ctx context.Context, ev *model.TradeRecorded) error {
	return f(ctx, ev)
}
