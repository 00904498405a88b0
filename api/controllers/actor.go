package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/marketpulse/marketpulse-backend/api/middleware"
	"github.com/marketpulse/marketpulse-backend/internal/catalog"
	"github.com/marketpulse/marketpulse-backend/pkg/enums"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
)

// actorFromRequest reconstructs the acting identity from the claims the auth
// middleware stored on the context. Vendor actors must carry a vendor id.
func actorFromRequest(r *http.Request) (catalog.Actor, error) {
	rawUser := middleware.UserIDFromContext(r.Context())
	if rawUser == "" {
		return catalog.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return catalog.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}

	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return catalog.Actor{}, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "unsupported actor role")
	}

	actor := catalog.Actor{UserID: userID, Role: role}

	if rawVendor := middleware.VendorIDFromContext(r.Context()); rawVendor != "" {
		vendorID, err := uuid.Parse(rawVendor)
		if err != nil {
			return catalog.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid vendor id")
		}
		actor.VendorID = &vendorID
	}

	if role == enums.ActorRoleVendor && actor.VendorID == nil {
		return catalog.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}

	return actor, nil
}
