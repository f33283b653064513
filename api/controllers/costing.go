package controllers

import (
	"net/http"

	"github.com/angelmondragon/platecost-backend/api/middleware"
	"github.com/angelmondragon/platecost-backend/api/responses"
	"github.com/angelmondragon/platecost-backend/api/validators"
	"github.com/angelmondragon/platecost-backend/internal/dishcost"
	"github.com/angelmondragon/platecost-backend/internal/uom"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/logger"
)

// ConvertQuantity converts a quantity of an ingredient into its base unit.
func ConvertQuantity(svc uom.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "uom service unavailable"))
			return
		}

		ingredientID, err := validators.ParseUUIDParam(r, "ingredientId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		quantity, err := validators.ParseQueryFloat(r, "quantity")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		uomID, err := validators.ParseQueryUUID(r, "uom_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		conversion, err := svc.Convert(ctx, middleware.OrgIDFromContext(ctx), ingredientID, quantity, uomID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, conversion)
	}
}

// DishCost returns the line breakdown and summary of one dish.
func DishCost(svc dishcost.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dish cost service unavailable"))
			return
		}

		dishID, err := validators.ParseUUIDParam(r, "dishId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.DishCost(ctx, middleware.OrgIDFromContext(ctx), dishID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
