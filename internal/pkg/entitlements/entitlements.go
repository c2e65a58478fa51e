package entitlements

import (
	"github.com/sumin-dev/Magpie/app/models"
)

// Access is what a reader is entitled to on an issue page.
type Access struct {
	FullContent  bool
	TeaserReason string
}

const (
	ReasonAnonymous    = "sign in and subscribe to read"
	ReasonNoSub        = "subscribe to read the full issue"
	ReasonUnpublished  = "this issue is not published"
	reasonEditorAccess = ""
)

// ForIssue decides what a viewer gets to see of one issue. Editors and admins
// always read in full; everyone else needs an active subscription.
func ForIssue(role string, isLoggedIn, isSubscribed bool) Access {
	if role == models.ROLE_EDITOR || role == models.ROLE_ADMIN {
		return Access{FullContent: true, TeaserReason: reasonEditorAccess}
	}
	if !isLoggedIn {
		return Access{FullContent: false, TeaserReason: ReasonAnonymous}
	}
	if !isSubscribed {
		return Access{FullContent: false, TeaserReason: ReasonNoSub}
	}
	return Access{FullContent: true}
}
