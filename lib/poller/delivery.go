// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"fmt"
	"slices"

	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/transport"
)

// deliverIfDue starts a background delivery when none is in flight and
// the queue is full or the last delivery is too old.
func (p *Poller) deliverIfDue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight || len(p.queue) == 0 {
		return
	}
	overdue := p.lastDelivery.IsZero() || p.clock.Now().Sub(p.lastDelivery) >= MaxDeliveryInterval
	if len(p.queue) < xr.MaxBatchRecords && !overdue {
		return
	}

	done, interrupt := p.claimDeliveryLocked()
	go func() {
		defer p.finishDelivery(done)
		if err := p.deliver(p.baseContext, false, interrupt); err != nil {
			p.logger.Warn("background delivery failed", "error", err)
		}
	}()
}

// drain delivers the whole queue, first waiting out (and cutting short
// the backoff of) any background delivery.
func (p *Poller) drain(ctx context.Context) error {
	p.mu.Lock()
	for p.inFlight {
		done := p.deliveryDone
		if p.interrupt != nil {
			close(p.interrupt)
			p.interrupt = nil
		}
		p.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		p.mu.Lock()
	}
	done, _ := p.claimDeliveryLocked()
	p.interrupt = nil
	p.mu.Unlock()

	defer p.finishDelivery(done)
	return p.deliver(ctx, true, nil)
}

func (p *Poller) claimDeliveryLocked() (done, interrupt chan struct{}) {
	done = make(chan struct{})
	interrupt = make(chan struct{})
	p.inFlight = true
	p.deliveryDone = done
	p.interrupt = interrupt
	return done, interrupt
}

func (p *Poller) finishDelivery(done chan struct{}) {
	p.mu.Lock()
	p.inFlight = false
	p.deliveryDone = nil
	p.interrupt = nil
	p.mu.Unlock()
	close(done)
}

// awaitDelivery blocks until the delivery in flight, if any, finishes.
func (p *Poller) awaitDelivery() {
	p.mu.Lock()
	done := p.deliveryDone
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// deliver sends the head of the queue, one batch at a time while
// drainAll is set. The caller holds the in-flight claim.
//
// An authentication rejection leaves the queue alone and waits out the
// backoff (or until interrupt closes) so the next attempt has a chance
// of finding the stream ready. Any other failure stops the loop and
// leaves the queue for an explicit Pause or End.
func (p *Poller) deliver(ctx context.Context, drainAll bool, interrupt <-chan struct{}) error {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return nil
		}
		sender := p.sender
		if sender == nil {
			p.mu.Unlock()
			return transport.ErrClosed
		}
		count := min(len(p.queue), xr.MaxBatchRecords)
		batch := slices.Clone(p.queue[:count])
		p.mu.Unlock()

		if err := sender.Send(ctx, batch); err != nil {
			if transport.IsAuthError(err) {
				p.logger.Warn("stream rejected credentials, retrying after backoff",
					"records", count, "backoff", authBackoff)
				select {
				case <-p.clock.After(authBackoff):
				case <-interrupt:
				case <-ctx.Done():
				}
				return fmt.Errorf("delivering %d records: %w", count, err)
			}
			p.stopLoop()
			p.logger.Error("delivery failed, sampling stopped", "records", count, "error", err)
			return fmt.Errorf("delivering %d records: %w", count, err)
		}

		p.mu.Lock()
		delivered := min(count, len(p.queue))
		p.queue = slices.Delete(p.queue, 0, delivered)
		p.lastDelivery = p.clock.Now()
		more := drainAll && len(p.queue) > 0
		p.mu.Unlock()
		if !more {
			return nil
		}
	}
}
