package refill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/gate"
	identity "github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/mail"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/utilities"
)

const (
	StageSent    = "sent"
	StageFailed  = "failed"
	StageSkipped = "skipped"

	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"

	defaultSendTimeout = 10 * time.Second
)

// Config holds the refill settings read from the environment.
type Config struct {
	OperationsAddress string `envconfig:"REFILL_OPERATIONS_ADDRESS" required:"true"`
}

func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("refill config: %w", err)
	}
	return cfg, nil
}

// StageResult is the outcome of one send.
type StageResult struct {
	Status     string `json:"status"`
	Recipients int    `json:"recipients"`
	Error      string `json:"error,omitempty"`
}

// Event is a single refill request and what came of it. It is not stored.
type Event struct {
	ID          string      `json:"id"`
	RequestedBy string      `json:"requested_by"`
	DisplayName string      `json:"display_name"`
	RequestedAt time.Time   `json:"requested_at"`
	Operations  StageResult `json:"operations"`
	Broadcast   StageResult `json:"broadcast"`
	Outcome     string      `json:"outcome"`
}

// EmailSource lists the broadcast recipients.
type EmailSource interface {
	Emails(ctx context.Context) ([]string, error)
}

// Options configures a Dispatcher.
type Options struct {
	OperationsAddress string
	From              string
	SendTimeout       time.Duration
	Metrics           *metrics.RefillMetrics
	Recorder          gate.Recorder
}

// Dispatcher runs the two stage refill notification.
type Dispatcher struct {
	sender mail.Sender
	emails EmailSource
	gate   *gate.Gate
	opts   Options
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewDispatcher(sender mail.Sender, emails EmailSource, g *gate.Gate, opts Options, logger *zap.SugaredLogger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	return &Dispatcher{sender: sender, emails: emails, gate: g, opts: opts, logger: logger, now: time.Now}
}

// Request alerts operations and, only if that worked, tells everyone. A
// transport failure is reported inside the event; the error return is for
// denials.
func (d *Dispatcher) Request(ctx context.Context, actor *identity.Identity) (*Event, error) {
	if _, err := d.gate.Check(ctx, actor, gate.OpRequestRefill, nil); err != nil {
		return nil, err
	}
	name := actor.DisplayName()
	ev := &Event{
		ID:          utilities.NewKSUID(),
		RequestedBy: actor.Username,
		DisplayName: name,
		RequestedAt: d.now().UTC(),
		Broadcast:   StageResult{Status: StageSkipped},
	}

	ops := mail.Message{
		From:    d.opts.From,
		To:      []string{d.opts.OperationsAddress},
		ReplyTo: strings.TrimSpace(actor.Email),
		Subject: "Paper refill needed",
		Body: "Hello,\n\n" +
			"We are running out of paper in the storeroom. Could you please refill it?\n\n" +
			"Regards,\n" + name,
	}
	ev.Operations = d.stage(ctx, ops)
	if ev.Operations.Status != StageSent {
		ev.Outcome = OutcomeFailed
		return d.finish(ctx, actor, ev), nil
	}

	recipients, err := d.emails.Emails(ctx)
	if err != nil {
		ev.Broadcast = StageResult{Status: StageFailed, Error: "recipient lookup: " + err.Error()}
		ev.Outcome = OutcomePartial
		return d.finish(ctx, actor, ev), nil
	}
	recipients = normalizeRecipients(recipients)
	if len(recipients) == 0 {
		ev.Outcome = OutcomeSuccess
		return d.finish(ctx, actor, ev), nil
	}

	broadcast := mail.Message{
		From:    d.opts.From,
		To:      recipients,
		Subject: "Paper has been reordered",
		Body: "Hello everyone,\n\n" +
			"Paper has just been reordered.\n\n" +
			"Requested by: " + name,
	}
	ev.Broadcast = d.stage(ctx, broadcast)
	if ev.Broadcast.Status == StageSent {
		ev.Outcome = OutcomeSuccess
	} else {
		ev.Outcome = OutcomePartial
	}
	return d.finish(ctx, actor, ev), nil
}

func (d *Dispatcher) stage(ctx context.Context, m mail.Message) StageResult {
	res := StageResult{Recipients: len(m.To)}
	if err := d.send(ctx, m); err != nil {
		res.Status = StageFailed
		res.Error = err.Error()
		return res
	}
	res.Status = StageSent
	return res
}

// send bounds one delivery. A sender that ignores ctx is abandoned once the
// deadline passes.
func (d *Dispatcher) send(ctx context.Context, m mail.Message) error {
	sctx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.sender.Send(sctx, m) }()
	select {
	case err := <-done:
		return err
	case <-sctx.Done():
		return fmt.Errorf("send timed out after %s: %w", d.opts.SendTimeout, sctx.Err())
	}
}

func (d *Dispatcher) finish(ctx context.Context, actor *identity.Identity, ev *Event) *Event {
	d.opts.Metrics.Observe(ev.Outcome)
	if d.opts.Recorder != nil {
		d.opts.Recorder.Record(ctx, actor, "refill", ev.Outcome, "event "+ev.ID)
	}
	log := d.logger.Infow
	if ev.Outcome != OutcomeSuccess {
		log = d.logger.Warnw
	}
	log("refill requested", "id", ev.ID, "by", ev.RequestedBy, "outcome", ev.Outcome,
		"operations", ev.Operations.Status, "broadcast", ev.Broadcast.Status,
		"operations_error", ev.Operations.Error, "broadcast_error", ev.Broadcast.Error)
	return ev
}

// normalizeRecipients trims, drops blanks and removes case-insensitive
// duplicates, keeping the first spelling.
func normalizeRecipients(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, addr := range in {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}
