package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamhouse/tap-shopify/constants"
	"github.com/streamhouse/tap-shopify/utils/logger"
)

// CxGroup wraps errgroup with its derived context so that spawned
// routines observe failures of their siblings
type CxGroup struct {
	group *errgroup.Group
	ctx   context.Context
}

func NewCGroup(ctx context.Context) *CxGroup {
	group, ctx := errgroup.WithContext(ctx)
	return &CxGroup{
		group: group,
		ctx:   ctx,
	}
}

func NewCGroupWithLimit(ctx context.Context, limit int) *CxGroup {
	cg := NewCGroup(ctx)
	cg.group.SetLimit(limit)
	return cg
}

func (c *CxGroup) Ctx() context.Context {
	return c.ctx
}

func (c *CxGroup) Add(run func(ctx context.Context) error) {
	c.group.Go(func() error {
		if c.ctx.Err() != nil {
			return c.ctx.Err()
		}
		return run(c.ctx)
	})
}

// Block waits until all routines registered so far have returned
func (c *CxGroup) Block() error {
	return c.group.Wait()
}

// ConcurrentInGroupWithRetry schedules run for every element of set on the
// group, retrying each element up to retries times with linear backoff.
// Errors wrapped with constants.ErrNonRetryable fail immediately.
func ConcurrentInGroupWithRetry[T any](group *CxGroup, set []T, retries int, run func(ctx context.Context, idx int, one T) error) {
	for idx, one := range set {
		group.Add(func(ctx context.Context) error {
			return RetryOnFailure(ctx, retries, func() error {
				return run(ctx, idx, one)
			})
		})
	}
}

// RetryOnFailure retries function with linear backoff; a wrapped
// constants.ErrNonRetryable aborts the retry loop
func RetryOnFailure(ctx context.Context, retries int, function func() error) error {
	var err error
	for attempt := 0; attempt < max(retries, 1); attempt++ {
		if err = function(); err == nil {
			return nil
		}

		if errors.Is(err, constants.ErrNonRetryable) {
			return err
		}

		logger.Warnf("attempt[%d] failed: %s", attempt+1, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}

	return fmt.Errorf("failed after %d attempts: %s", max(retries, 1), err)
}
