package controllers

import (
	"net/http"

	"github.com/angelmondragon/platecost-backend/api/middleware"
	"github.com/angelmondragon/platecost-backend/api/responses"
	"github.com/angelmondragon/platecost-backend/api/validators"
	"github.com/angelmondragon/platecost-backend/internal/menucost"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/logger"
)

// MenuCost returns the menu cost report, optionally scaled to ?pax=.
func MenuCost(svc menucost.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "menu cost service unavailable"))
			return
		}

		menuID, err := validators.ParseUUIDParam(r, "menuId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		pax, err := validators.ParseOptionalPositiveInt(r, "pax", menucost.MaxPax)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		report, err := svc.Report(ctx, middleware.OrgIDFromContext(ctx), menuID, pax)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func MenuLockCheck(svc menucost.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "menu cost service unavailable"))
			return
		}

		menuID, err := validators.ParseUUIDParam(r, "menuId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		check, err := svc.LockCheck(ctx, middleware.OrgIDFromContext(ctx), menuID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, check)
	}
}

// MenuLock freezes the menu's current costs into a snapshot.
func MenuLock(svc menucost.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "menu cost service unavailable"))
			return
		}

		menuID, err := validators.ParseUUIDParam(r, "menuId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		report, err := svc.Lock(ctx, middleware.OrgIDFromContext(ctx), middleware.ActorIDFromContext(ctx), menuID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// MenuUnlock returns the menu to live costing.
func MenuUnlock(svc menucost.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "menu cost service unavailable"))
			return
		}

		menuID, err := validators.ParseUUIDParam(r, "menuId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		report, err := svc.Unlock(ctx, middleware.OrgIDFromContext(ctx), middleware.ActorIDFromContext(ctx), menuID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// MenuGroupPatch updates group overrides. A JSON null clears an override.
func MenuGroupPatch(svc menucost.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "menu cost service unavailable"))
			return
		}

		menuID, err := validators.ParseUUIDParam(r, "menuId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		groupID, err := validators.ParseUUIDParam(r, "groupId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var patch menucost.GroupPatch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.UpdateGroup(ctx, middleware.OrgIDFromContext(ctx), menuID, groupID, patch); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// MenuItemPatch updates item overrides and the selling price.
func MenuItemPatch(svc menucost.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "menu cost service unavailable"))
			return
		}

		menuID, err := validators.ParseUUIDParam(r, "menuId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var patch menucost.ItemPatch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.UpdateItem(ctx, middleware.OrgIDFromContext(ctx), menuID, itemID, patch); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
