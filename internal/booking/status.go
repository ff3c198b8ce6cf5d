package booking

type Status string

const (
	StatusQuotation Status = "QUOTATION"
	StatusSent      Status = "SENT"
	StatusConfirmed Status = "CONFIRMED"
	StatusInvoiced  Status = "INVOICED"
	StatusPickedUp  Status = "PICKED_UP"
	StatusReturned  Status = "RETURNED"
	StatusCancelled Status = "CANCELLED"
)

// Action is a lifecycle command applied to an order.
type Action string

const (
	ActionSend    Action = "SEND"
	ActionConfirm Action = "CONFIRM"
	ActionInvoice Action = "INVOICE"
	ActionPickup  Action = "PICKUP"
	ActionReturn  Action = "RETURN"
	ActionCancel  Action = "CANCEL"
)

// transitions is the only place that decides which action is legal from which status.
var transitions = map[Status]map[Action]Status{
	StatusQuotation: {ActionSend: StatusSent, ActionCancel: StatusCancelled},
	StatusSent:      {ActionConfirm: StatusConfirmed, ActionCancel: StatusCancelled},
	StatusConfirmed: {ActionInvoice: StatusInvoiced, ActionCancel: StatusCancelled},
	StatusInvoiced:  {ActionPickup: StatusPickedUp, ActionCancel: StatusCancelled},
	StatusPickedUp:  {ActionReturn: StatusReturned, ActionCancel: StatusCancelled},
	StatusReturned:  {},
	StatusCancelled: {},
}

// Next returns the status reached by applying a to an order in from.
func Next(from Status, a Action) (Status, error) {
	to, ok := transitions[from][a]
	if !ok {
		return "", invalidStatef("cannot %s order in status %s", a, from)
	}
	return to, nil
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// HoldsReservations reports whether an order in s owns reservation rows.
func (s Status) HoldsReservations() bool {
	switch s {
	case StatusConfirmed, StatusInvoiced, StatusPickedUp:
		return true
	}
	return false
}

// CountingStatuses are the order statuses whose reservations count against availability.
// SENT orders never own reservations; it is listed so the filter stays correct if that changes.
var CountingStatuses = []Status{StatusSent, StatusConfirmed, StatusInvoiced, StatusPickedUp}
