package booking

// authorize checks that p may apply a to o. Ownership is all that is checked here;
// authentication happened before the call reached the core.
func authorize(p Principal, o Order, a Action) error {
	switch p.Role {
	case RoleAdmin:
		return nil
	case RoleVendor:
		if p.ID != "" && p.ID == o.VendorID {
			return nil
		}
	case RoleCustomer:
		if p.ID != "" && p.ID == o.CustomerID && customerMay(a) {
			return nil
		}
	}
	return Unauthorizedf("%s %q may not %s order %s", p.Role, p.ID, actionVerb(a), o.ID)
}

// actionView is the pseudo action for reads.
const actionView Action = "VIEW"

func customerMay(a Action) bool {
	switch a {
	case ActionConfirm, ActionCancel, actionView:
		return true
	}
	return false
}

func actionVerb(a Action) string {
	if a == actionView {
		return "view"
	}
	return string(a)
}

// CanView reports whether p may read o.
func CanView(p Principal, o Order) error { return authorize(p, o, actionView) }
