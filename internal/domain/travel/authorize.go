package travel

import (
	"fmt"

	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/domain/errs"
)

// AuthorizeReviewer fails closed unless actor may review req. The
// self-review check comes first so it holds for every role.
func AuthorizeReviewer(req *entity.TravelSupportRequest, actor entity.Actor, action string) error {
	if actor.ID == "" {
		return errs.NewAuthorizationError(actor.ID, action, "no authenticated actor")
	}
	if actor.ID == req.SpeakerID {
		return errs.NewAuthorizationError(actor.ID, action, "reviewers cannot review their own travel support request")
	}
	if !actor.CanReview() {
		return errs.NewAuthorizationError(actor.ID, action, "reviewer role required")
	}
	return nil
}

// AuthorizeOwner allows the owning speaker, or an admin acting on their behalf
func AuthorizeOwner(req *entity.TravelSupportRequest, actor entity.Actor, action string) error {
	if actor.ID == "" {
		return errs.NewAuthorizationError(actor.ID, action, "no authenticated actor")
	}
	if actor.ID != req.SpeakerID && actor.Role != entity.RoleAdmin {
		return errs.NewAuthorizationError(actor.ID, action, "only the requesting speaker may do this")
	}
	return nil
}

// AuthorizeRead allows the owner and anyone with review permissions
func AuthorizeRead(req *entity.TravelSupportRequest, actor entity.Actor) error {
	if actor.ID != "" && (actor.ID == req.SpeakerID || actor.CanReview()) {
		return nil
	}
	return errs.NewAuthorizationError(actor.ID, "view request", "not the requesting speaker or a reviewer")
}

func requireEditable(req *entity.TravelSupportRequest, actor entity.Actor, action string) error {
	if !req.IsEditable() {
		return errs.NewAuthorizationError(actor.ID, action,
			fmt.Sprintf("request is %s; only draft requests can be edited", req.Status))
	}
	return nil
}
