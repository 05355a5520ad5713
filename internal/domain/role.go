package domain

type Role string

const (
	RoleBuyer    Role = "BUYER"
	RoleSeller   Role = "SELLER"
	RoleObserver Role = "OBSERVER"
)

// ResolveRole computes the viewer's role for an order. Roles are derived,
// never stored: the assignment can change when an open order is accepted,
// so callers must recompute on every view.
//
// Priority: store-resolved hint, merchant-to-merchant topology, direction
// of a user/merchant trade, observer.
func ResolveRole(o *Order, viewerID string) Role {
	if r, ok := o.RoleHints[viewerID]; ok {
		return r
	}

	if o.M2M() {
		switch viewerID {
		case o.Parties.MerchantID:
			return RoleSeller
		case o.Parties.CounterMerchantID:
			return RoleBuyer
		}
		return RoleObserver
	}

	// Direction is declared from the originating user's perspective. Before
	// acceptance the creator has no counterparty; declared intent still
	// determines their side.
	switch viewerID {
	case o.Parties.UserID:
		if o.Direction == DirectionSell {
			return RoleSeller
		}
		return RoleBuyer
	case o.Parties.MerchantID:
		if o.Parties.MerchantID == "" {
			return RoleObserver
		}
		if o.Direction == DirectionSell {
			return RoleBuyer
		}
		return RoleSeller
	}
	return RoleObserver
}

// Actor identifies the participant performing an operation.
type Actor struct {
	ID         string
	Wallet     string
	Compliance bool
}
