package domain

type ReservationStatus string

const (
	StatusPending         ReservationStatus = "PENDING"
	StatusApproved        ReservationStatus = "APPROVED"
	StatusRejected        ReservationStatus = "REJECTED"
	StatusCancelled       ReservationStatus = "CANCELLED"
	StatusRefundRequested ReservationStatus = "REFUND_REQUESTED"
	StatusRefunded        ReservationStatus = "REFUNDED"
)

// ActiveStatuses hold inventory. A refund request keeps the claim until it is decided.
var ActiveStatuses = []ReservationStatus{StatusPending, StatusApproved, StatusRefundRequested}

func (s ReservationStatus) IsActive() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRefundRequested:
		return true
	}
	return false
}

func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

type Action string

const (
	ActionApprove       Action = "APPROVE"
	ActionReject        Action = "REJECT"
	ActionCancel        Action = "CANCEL"
	ActionRequestRefund Action = "REQUEST_REFUND"
	ActionApproveRefund Action = "APPROVE_REFUND"
	ActionRejectRefund  Action = "REJECT_REFUND"
)

// Actor is the party allowed to trigger an action.
type Actor int

const (
	// ActorHolder is the user who made the reservation.
	ActorHolder Actor = iota
	// ActorOrganizer is the user who owns the performance.
	ActorOrganizer
)

func (a Action) Actor() Actor {
	switch a {
	case ActionCancel, ActionRequestRefund:
		return ActorHolder
	default:
		return ActorOrganizer
	}
}

// Step is one resolved edge of the reservation state machine.
type Step struct {
	From              ReservationStatus
	To                ReservationStatus
	Action            Action
	ReleasesInventory bool
	Event             string
}

type edge struct {
	to      ReservationStatus
	release bool
	event   string
}

var transitions = map[ReservationStatus]map[Action]edge{
	StatusPending: {
		ActionApprove: {to: StatusApproved, event: "reservation.approved"},
		ActionReject:  {to: StatusRejected, release: true, event: "reservation.rejected"},
		ActionCancel:  {to: StatusCancelled, release: true, event: "reservation.cancelled"},
	},
	StatusApproved: {
		ActionRequestRefund: {to: StatusRefundRequested, event: "reservation.refund_requested"},
	},
	StatusRefundRequested: {
		ActionApproveRefund: {to: StatusRefunded, release: true, event: "reservation.refunded"},
		ActionRejectRefund:  {to: StatusApproved, event: "reservation.refund_rejected"},
	},
}

// Transition resolves the edge taken by action from status, or fails with
// ErrInvalidStateTransition.
func Transition(from ReservationStatus, action Action) (Step, error) {
	e, ok := transitions[from][action]
	if !ok {
		return Step{}, InvalidTransitionf("cannot %s a reservation in status %s", action, from)
	}
	return Step{From: from, To: e.to, Action: action, ReleasesInventory: e.release, Event: e.event}, nil
}

// AllowedActions lists what actor may do next, in a stable order.
func AllowedActions(status ReservationStatus, actor Actor) []Action {
	order := []Action{ActionApprove, ActionReject, ActionCancel, ActionRequestRefund, ActionApproveRefund, ActionRejectRefund}
	actions := []Action{}
	for _, a := range order {
		if a.Actor() != actor {
			continue
		}
		if _, ok := transitions[status][a]; ok {
			actions = append(actions, a)
		}
	}
	return actions
}

// DecisionAction maps an organizer decision on a pending reservation to its action.
func DecisionAction(decision ReservationStatus) (Action, error) {
	switch decision {
	case StatusApproved:
		return ActionApprove, nil
	case StatusRejected:
		return ActionReject, nil
	}
	return "", Validationf("decision must be %s or %s, got %q", StatusApproved, StatusRejected, decision)
}

func RefundDecisionAction(approve bool) Action {
	if approve {
		return ActionApproveRefund
	}
	return ActionRejectRefund
}

// RefundStatusAfter is the refund record status produced by a refund action.
func RefundStatusAfter(a Action) (RefundStatus, bool) {
	switch a {
	case ActionRequestRefund:
		return RefundRequested, true
	case ActionApproveRefund:
		return RefundApproved, true
	case ActionRejectRefund:
		return RefundRejected, true
	}
	return "", false
}
