package model

import (
	apperrors "farmtrace/internal/errors"
)

// Transition is the effect of a valid custody change.
type Transition struct {
	Next  BatchStatus
	Event EventType
}

// NextTransition returns the transition for handing a batch in status current
// to a receiver with the given role. Every pairing outside the
// farmer → distributor → retailer → consumer chain is rejected.
func NextTransition(current BatchStatus, receiver Role) (Transition, error) {
	switch receiver {
	case RoleDistributor:
		if current == StatusHarvested || current == StatusInTransit {
			return Transition{Next: StatusAtDistributor, Event: EventPickup}, nil
		}
	case RoleRetailer:
		if current == StatusAtDistributor {
			return Transition{Next: StatusAtRetailer, Event: EventDelivery}, nil
		}
	case RoleConsumer:
		if current == StatusAtRetailer {
			return Transition{Next: StatusSold, Event: EventSale}, nil
		}
	case RoleFarmer:
	}
	return Transition{}, &apperrors.TransitionError{Status: string(current), Role: string(receiver)}
}

// TransitTransition returns the transition for a holder shipping a batch
// without a change of custody. Only a farmer holding a harvested batch may do so.
func TransitTransition(current BatchStatus, holder Role) (Transition, error) {
	if holder == RoleFarmer && current == StatusHarvested {
		return Transition{Next: StatusInTransit, Event: EventTransit}, nil
	}
	return Transition{}, &apperrors.TransitionError{Status: string(current), Role: string(holder)}
}
