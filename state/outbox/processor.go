package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"nostrdesk/engine/backend"
	"nostrdesk/engine/library"
)

// Queue is where the server keeps direct messages waiting to be delivered.
type Queue interface {
	GetQueuedOutboundMessages(ctx context.Context) ([]backend.QueuedMessage, error)
	MarkMessageSent(ctx context.Context, receipt backend.MessageReceipt) error
}

// Sender delivers one direct message. *inbox.Inbox implements it.
type Sender interface {
	Send(ctx context.Context, recipient library.Account, text string) (nostr.Event, error)
}

type Processor struct {
	queue  Queue
	sender Sender
	ledger *Ledger
	now    func() time.Time
}

func NewProcessor(queue Queue, sender Sender, ledger *Ledger) *Processor {
	if ledger == nil {
		ledger = NewLedger()
	}
	return &Processor{queue: queue, sender: sender, ledger: ledger, now: time.Now}
}

// Result counts what one pass did.
type Result struct {
	Sent         int
	Acknowledged int
	Failed       int
}

func (r Result) String() string {
	return fmt.Sprintf("%d sent, %d acknowledged, %d failed", r.Sent, r.Acknowledged, r.Failed)
}

// Process delivers everything in the server queue once. Messages already in the
// ledger are only acknowledged again, never resent.
func (p *Processor) Process(ctx context.Context) (r Result, err error) {
	for _, entry := range p.ledger.Unacknowledged() {
		if p.acknowledge(ctx, entry.Receipt) {
			r.Acknowledged++
		}
	}
	queued, err := p.queue.GetQueuedOutboundMessages(ctx)
	if err != nil {
		return r, err
	}
	fifo := library.NewQueue[backend.QueuedMessage](len(queued))
	for _, m := range queued {
		fifo.Push(m)
	}
	for fifo.Len() > 0 {
		if ctx.Err() != nil {
			return r, ctx.Err()
		}
		m, _ := fifo.Pop()
		if entry, ok := p.ledger.Get(m.ID); ok {
			if !entry.Acknowledged && p.acknowledge(ctx, entry.Receipt) {
				r.Acknowledged++
			}
			continue
		}
		if !library.IsValid32ByteHex(m.Recipient) {
			library.LogCLI(fmt.Sprintf("outbox: message %s has no usable recipient", m.ID), 2)
			r.Failed++
			continue
		}
		event, err := p.sender.Send(ctx, m.Recipient, m.Text())
		if err != nil {
			library.LogCLI(fmt.Sprintf("outbox: message %s: %s", m.ID, err.Error()), 2)
			r.Failed++
			continue
		}
		receipt := backend.MessageReceipt{
			ID:        m.ID,
			EventID:   event.ID,
			Recipient: m.Recipient,
			Subject:   m.Subject,
			Username:  m.Username,
		}
		if err := p.ledger.Record(Entry{Receipt: receipt, SentAt: p.now().Unix()}); err != nil {
			library.LogCLI(fmt.Sprintf("outbox: recording message %s: %s", m.ID, err.Error()), 1)
		}
		r.Sent++
		if p.acknowledge(ctx, receipt) {
			r.Acknowledged++
		}
	}
	return r, nil
}

func (p *Processor) acknowledge(ctx context.Context, receipt backend.MessageReceipt) bool {
	if err := p.queue.MarkMessageSent(ctx, receipt); err != nil {
		library.LogCLI(fmt.Sprintf("outbox: marking message %s sent: %s", receipt.ID, err.Error()), 2)
		return false
	}
	if err := p.ledger.Acknowledge(receipt.ID); err != nil {
		library.LogCLI(err.Error(), 1)
	}
	return true
}

// Run processes the queue every interval until ctx is done.
func (p *Processor) Run(ctx context.Context, interval time.Duration) {
	library.Every(ctx, "outbox", interval, func(ctx context.Context) {
		r, err := p.Process(ctx)
		if err != nil {
			if ctx.Err() == nil {
				library.LogCLI(fmt.Sprintf("outbox: %s", err.Error()), 2)
			}
			return
		}
		if r != (Result{}) {
			library.LogCLI("outbox: "+r.String(), 4)
		}
	})
}
