package auth

import "polling-system-backend/models"

// CanManagePoll reports whether the caller may mutate the poll
// (update, close, delete). Owners and admins only.
func CanManagePoll(ident *Identity, poll *models.Poll) bool {
	if ident == nil {
		return false
	}
	return ident.IsAdmin() || poll.CreatedBy == ident.UserID
}

// CanViewResults is the single visibility predicate for poll results,
// applied identically by the REST surface and the live channel: public
// polls are visible to any authenticated caller, private ones to the
// owner and admins.
func CanViewResults(ident *Identity, poll *models.Poll) bool {
	if ident == nil {
		return false
	}
	return poll.IsPublic || CanManagePoll(ident, poll)
}
