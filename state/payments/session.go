package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"nostrdesk/engine/library"
)

// Session watches one invoice until it is confirmed or cancelled.
// It ends exactly once; later success reports are ignored.
type Session struct {
	ID         string
	invoice    Invoice
	config     Config
	strategies []Strategy
	providers  []Provider
	notifier   Notifier

	mutex   *deadlock.Mutex
	state   State
	outcome Outcome
	cancel  context.CancelFunc
	timer   *time.Timer
	done    chan struct{}
}

func NewSession(invoice Invoice, config Config, strategies []Strategy, providers []Provider, notifier Notifier) *Session {
	return &Session{
		ID:         uuid.NewString(),
		invoice:    invoice,
		config:     config.withDefaults(),
		strategies: strategies,
		providers:  providers,
		notifier:   notifier,
		mutex:      &deadlock.Mutex{},
		state:      Created,
		done:       make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

func (s *Session) Invoice() Invoice {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.invoice
}

// Start prepares every strategy and begins polling. The session context is
// derived from ctx; cancelling ctx stops polling but does not end the session.
func (s *Session) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.state != Created {
		s.mutex.Unlock()
		return fmt.Errorf("session %s is %s", s.ID, s.state)
	}
	maxAwait := s.config.MaxAwait
	if invoice, left, ok := inspect(s.invoice, time.Now()); ok {
		s.invoice = invoice
		switch {
		case left <= 0:
			// expired already: one round of checks catches a payment made just before expiry
			maxAwait = s.config.Interval
		case left < maxAwait:
			maxAwait = left
		}
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = AwaitingPayment
	invoice := s.invoice
	s.mutex.Unlock()

	var active []Strategy
	for _, strategy := range s.strategies {
		if err := strategy.Prepare(sessionCtx, invoice); err != nil {
			library.LogCLI(fmt.Sprintf("order %s: %s not used: %s", invoice.OrderID, strategy.Name(), err.Error()), 3)
			continue
		}
		active = append(active, strategy)
	}
	if len(active) == 0 && !s.walletAvailable() {
		s.finish(Outcome{State: Cancelled, Err: library.ErrWalletUnavailable, Hint: ManualPaymentHint(invoice)})
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.state != AwaitingPayment {
		// cancelled or paid by wallet while preparing
		return nil
	}
	s.timer = time.AfterFunc(maxAwait, func() {
		s.finish(Outcome{State: Cancelled, Err: library.ErrPaymentTimeout, Hint: ManualPaymentHint(invoice)})
	})
	for _, strategy := range active {
		strategy := strategy
		go library.Every(sessionCtx, fmt.Sprintf("payment %s %s", invoice.OrderID, strategy.Name()), s.config.Interval, func(ctx context.Context) {
			s.check(ctx, invoice, strategy)
		})
	}
	library.LogCLI(fmt.Sprintf("order %s: watching invoice with %d strategies for at most %s", invoice.OrderID, len(active), maxAwait), 4)
	return nil
}

// check polls one strategy. Every strategy runs on its own loop so a slow
// wallet never holds back the others; confirm decides the single winner.
// Errors are logged and retried on the next tick.
func (s *Session) check(ctx context.Context, invoice Invoice, strategy Strategy) {
	if ctx.Err() != nil {
		return
	}
	settlement, err := strategy.Check(ctx, invoice)
	if err != nil {
		if ctx.Err() == nil {
			library.LogCLI(fmt.Sprintf("order %s: %s: %s", invoice.OrderID, strategy.Name(), err.Error()), 3)
		}
		return
	}
	if settlement.Settled {
		s.confirm(strategy.Name(), settlement.Preimage)
	}
}

func (s *Session) walletAvailable() bool {
	for _, provider := range s.providers {
		if provider.Available() {
			return true
		}
	}
	return false
}

// confirm moves the session to Confirmed and notifies the server. It returns
// false when the session had already ended.
func (s *Session) confirm(strategy, preimage string) bool {
	s.mutex.Lock()
	if s.state != AwaitingPayment {
		s.mutex.Unlock()
		return false
	}
	s.state = Confirmed
	s.outcome = Outcome{State: Confirmed, Strategy: strategy, Preimage: preimage}
	s.stop()
	invoice := s.invoice
	s.mutex.Unlock()

	if preimage != "" && invoice.PaymentHash != "" && !library.PreimageMatches(preimage, invoice.PaymentHash) {
		library.LogCLI(fmt.Sprintf("order %s: preimage from %s does not hash to the payment hash", invoice.OrderID, strategy), 2)
	}
	library.LogCLI(fmt.Sprintf("order %s: payment confirmed by %s", invoice.OrderID, strategy), 4)
	err := s.notify(invoice, preimage)

	s.mutex.Lock()
	s.outcome.Err = err
	s.mutex.Unlock()
	close(s.done)
	return true
}

func (s *Session) notify(invoice Invoice, preimage string) error {
	if s.notifier == nil {
		return nil
	}
	var err error
	for attempt := 1; attempt <= s.config.NotifyAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.NotifyTimeout)
		err = s.notifier.NotifyPaymentComplete(ctx, invoice.OrderID, preimage)
		cancel()
		if err == nil {
			return nil
		}
		library.LogCLI(fmt.Sprintf("order %s: notifying server (attempt %d of %d): %s", invoice.OrderID, attempt, s.config.NotifyAttempts, err.Error()), 2)
		if attempt < s.config.NotifyAttempts {
			time.Sleep(s.config.NotifyBackoff)
		}
	}
	if errors.Is(err, library.ErrServerSyncFailed) {
		return err
	}
	return fmt.Errorf("%w: %s", library.ErrServerSyncFailed, err)
}

// finish ends the session without a payment.
func (s *Session) finish(outcome Outcome) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = outcome.State
	s.outcome = outcome
	s.stop()
	if outcome.Err != nil {
		library.LogCLI(fmt.Sprintf("order %s: %s", s.invoice.OrderID, outcome.Err.Error()), 2)
	}
	close(s.done)
	return true
}

// stop must be called with the mutex held.
func (s *Session) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Cancel ends the session on user cancellation or navigation. Calling it again, or
// after confirmation, does nothing.
func (s *Session) Cancel() {
	s.finish(Outcome{State: Cancelled})
}

// PayWithWallet pays the invoice through the first available provider.
func (s *Session) PayWithWallet(ctx context.Context) error {
	s.mutex.Lock()
	state := s.state
	invoice := s.invoice
	s.mutex.Unlock()
	if state != AwaitingPayment {
		return fmt.Errorf("session %s is %s", s.ID, state)
	}
	for _, provider := range s.providers {
		if !provider.Available() {
			continue
		}
		preimage, err := provider.PayInvoice(ctx, invoice.Invoice)
		if err != nil {
			return fmt.Errorf("%s: %w", provider.Name(), err)
		}
		s.confirm(provider.Name(), preimage)
		return nil
	}
	return fmt.Errorf("%w: %s", library.ErrWalletUnavailable, ManualPaymentHint(invoice))
}

// Wait blocks until the session ends or ctx is done.
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		s.mutex.Lock()
		defer s.mutex.Unlock()
		return s.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Done is closed once the outcome is final.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
