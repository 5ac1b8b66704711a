package gate

import (
	"context"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-shift-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-shift-go/pkg/metrics"
)

// Operation names an action the gate decides on.
type Operation string

const (
	OpRegisterIdentity Operation = "register_identity"
	OpDeleteIdentity   Operation = "delete_identity"
	OpListIdentities   Operation = "list_identities"
	OpChangeRole       Operation = "change_role"
	OpListHistory      Operation = "list_history"
	OpCreateShift      Operation = "create_shift"
	OpReadShiftList    Operation = "read_shift_list"
	OpUpdateShift      Operation = "update_shift"
	OpDeleteShift      Operation = "delete_shift"
	OpReadCalendar     Operation = "read_calendar"
	OpRequestRefill    Operation = "request_refill"
)

// Denial reasons.
const (
	ReasonAuthRequired  = "authentication required"
	ReasonInsufficient  = "insufficient privilege"
	ReasonSelfDelete    = "cannot self-delete"
	ReasonNotOwner      = "not owner and not privileged"
	ReasonForeignOwner  = "cannot act for another identity"
	ReasonUnknownAction = "unknown operation"
)

// Scope is the visibility granted by a read decision.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeOwn
	ScopeAll
)

// Target describes the record an operation acts on. Zero fields are unknown.
type Target struct {
	ShiftID    string
	OwnerID    string
	IdentityID string
	Username   string
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  string
	Scope   Scope
}

// Err converts a denial into the matching apperr sentinel.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonAuthRequired:
		return apperr.ErrUnauthenticated
	case ReasonSelfDelete:
		return apperr.ErrSelfDelete
	default:
		return apperr.Wrap(apperr.ErrForbidden, d.Reason)
	}
}

func allow(scope Scope) Decision { return Decision{Allowed: true, Scope: scope} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Authorize is the single decision point for every operation. A nil actor is
// unauthenticated. It has no side effects.
func Authorize(actor *entity.Identity, op Operation, target *Target) Decision {
	if actor == nil || actor.ID == "" {
		return deny(ReasonAuthRequired)
	}
	if target == nil {
		target = &Target{}
	}
	privileged := actor.Privileged()

	switch op {
	case OpRegisterIdentity, OpListIdentities, OpChangeRole, OpListHistory:
		if !privileged {
			return deny(ReasonInsufficient)
		}
		return allow(ScopeAll)

	case OpDeleteIdentity:
		if isSelf(actor, target) {
			return deny(ReasonSelfDelete)
		}
		if !privileged {
			return deny(ReasonInsufficient)
		}
		return allow(ScopeAll)

	case OpCreateShift:
		if target.OwnerID != "" && target.OwnerID != actor.ID {
			return deny(ReasonForeignOwner)
		}
		return allow(ScopeOwn)

	case OpReadShiftList, OpReadCalendar:
		if privileged {
			return allow(ScopeAll)
		}
		return allow(ScopeOwn)

	case OpUpdateShift, OpDeleteShift:
		if privileged {
			return allow(ScopeAll)
		}
		if target.OwnerID != "" && target.OwnerID == actor.ID {
			return allow(ScopeOwn)
		}
		return deny(ReasonNotOwner)

	case OpRequestRefill:
		return allow(ScopeOwn)
	}
	return deny(ReasonUnknownAction)
}

func isSelf(actor *entity.Identity, target *Target) bool {
	if target.IdentityID != "" && target.IdentityID == actor.ID {
		return true
	}
	return target.Username != "" && target.Username == actor.Username
}

// Recorder appends action records. Implementations must not fail the caller.
type Recorder interface {
	Record(ctx context.Context, actor *entity.Identity, action, outcome, detail string)
}

// Gate wraps Authorize with audit recording, metrics and logging.
type Gate struct {
	recorder Recorder
	metrics  *metrics.GateMetrics
	logger   *zap.SugaredLogger
}

func New(recorder Recorder, m *metrics.GateMetrics, logger *zap.SugaredLogger) *Gate {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Gate{recorder: recorder, metrics: m, logger: logger}
}

// Check decides op for actor and records the decision. The returned error is
// nil when allowed.
func (g *Gate) Check(ctx context.Context, actor *entity.Identity, op Operation, target *Target) (Decision, error) {
	d := Authorize(actor, op, target)
	if g == nil {
		return d, d.Err()
	}
	g.metrics.Observe(string(op), d.Allowed)

	outcome := "allow"
	if !d.Allowed {
		outcome = "deny: " + d.Reason
		g.logger.Debugw("gate denied", "operation", op, "actor", actorName(actor), "reason", d.Reason)
	}
	if g.recorder != nil {
		g.recorder.Record(ctx, actor, string(op), outcome, targetDetail(target))
	}
	return d, d.Err()
}

// Admit runs Authorize ahead of an operation's input handling. Only a denial
// is recorded here; an allowed request gets its single record from the Check
// on the resolved target. Ownership is not judged while the owner is unknown.
func (g *Gate) Admit(ctx context.Context, actor *entity.Identity, op Operation, target *Target) error {
	d := Authorize(actor, op, target)
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonNotOwner && (target == nil || target.OwnerID == "") {
		return nil
	}
	_, err := g.Check(ctx, actor, op, target)
	return err
}

func actorName(actor *entity.Identity) string {
	if actor == nil {
		return ""
	}
	return actor.Username
}

func targetDetail(t *Target) string {
	switch {
	case t == nil:
		return ""
	case t.ShiftID != "":
		return "shift " + t.ShiftID
	case t.Username != "":
		return "identity " + t.Username
	case t.IdentityID != "":
		return "identity " + t.IdentityID
	}
	return ""
}
