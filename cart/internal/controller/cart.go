package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/skatehub/ecommerce/cart/internal/common/otel"
	"github.com/skatehub/ecommerce/cart/internal/service"
	"github.com/skatehub/ecommerce/cart/pkg/request"
	"github.com/skatehub/ecommerce/internal/common"
	inErrors "github.com/skatehub/ecommerce/internal/common/errors"
	inHttp "github.com/skatehub/ecommerce/internal/common/http"
	"github.com/skatehub/ecommerce/internal/log"
)

type CartController struct {
	service *service.CartService
}

func AttachCartController(router *mux.Router, service *service.CartService) {
	controller := CartController{service: service}

	router.HandleFunc("", controller.GetCart).Methods(http.MethodGet)
	router.HandleFunc("/add", controller.AddItem).Methods(http.MethodPost)
	router.HandleFunc("/update", controller.UpdateItem).Methods(http.MethodPut)
	router.HandleFunc("/remove/{productId}", controller.RemoveItem).Methods(http.MethodDelete)
	router.HandleFunc("/clear", controller.ClearCart).Methods(http.MethodDelete)
	router.HandleFunc("/check-availability", controller.CheckAvailability).
		Methods(http.MethodGet)
}

// errorBody maps the error taxonomy onto the response surface: validation and
// stock failures are client-fixable 400s, a missing cart item is a 404, and
// anything else is a persistence-layer 500.
func errorBody(err error) map[string]interface{} {
	var stockErr inErrors.InsufficientStockError
	if errors.As(err, &stockErr) {
		return map[string]interface{}{
			"statusCode": http.StatusBadRequest,
			"error":      "insufficient stock",
			"details":    stockErr.Details(),
		}
	}
	var validationErr inErrors.ValidationError
	if errors.As(err, &validationErr) {
		return map[string]interface{}{
			"statusCode": http.StatusBadRequest,
			"error":      validationErr.Error(),
		}
	}
	if errors.Is(err, inErrors.ErrProductNotFound) {
		return map[string]interface{}{
			"statusCode": http.StatusBadRequest,
			"error":      inErrors.ErrProductNotFound.Error(),
		}
	}
	if errors.Is(err, inErrors.ErrCartItemNotFound) {
		return map[string]interface{}{
			"statusCode": http.StatusNotFound,
			"error":      inErrors.ErrCartItemNotFound.Error(),
		}
	}
	return map[string]interface{}{
		"statusCode": http.StatusInternalServerError,
		"error":      "internal server error",
		"details":    err.Error(),
	}
}

func (t CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController GetCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController GetCart").
		Logger()

	userId, err := common.UserIdFromJwtToken(c)
	if err != nil {
		err = fmt.Errorf("failed getting userId from jwtToken with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"statusCode": http.StatusUnauthorized,
			"error":      inErrors.ErrTokenInvalid.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyUserID, userId).Logger()

	logger = logger.With().Str(log.KeyProcess, "getting cart").Logger()
	logger.Info().Msg("getting cart")
	c = logger.WithContext(c)
	cart, stats, err := t.service.GetCart(c, userId)
	if err != nil {
		err = fmt.Errorf("failed getting cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, errorBody(err))
		return
	}
	logger.Info().Msg("got cart")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"statusCode": http.StatusOK,
		"cart":       cart,
		"stats":      stats,
	})
}

func (t CartController) AddItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController AddItem").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding requestbody").Logger()
	logger.Info().Msg("decoding requestbody")
	reqBody := request.AddCartItem{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"statusCode": http.StatusBadRequest,
			"error":      "invalid request body",
		})
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating requestbody").Logger()
	logger.Info().Msg("validating request body")
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"statusCode": http.StatusBadRequest,
			"error":      "quantity must be a positive integer and productId is required",
		})
		return
	}
	logger.Info().Msg("validated request body")

	userId, err := common.UserIdFromJwtToken(c)
	if err != nil {
		err = fmt.Errorf("failed getting userId from jwtToken with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"statusCode": http.StatusUnauthorized,
			"error":      inErrors.ErrTokenInvalid.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyUserID, userId).Logger()

	logger = logger.With().Str(log.KeyProcess, "adding item").Logger()
	logger.Info().Msg("adding item to cart")
	c = logger.WithContext(c)
	cart, stats, err := t.service.AddItem(c, userId, reqBody.ProductId, reqBody.QuantityOrDefault())
	if err != nil {
		err = fmt.Errorf("failed adding item to cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, errorBody(err))
		return
	}
	logger.Info().Msg("added item to cart")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"statusCode": http.StatusCreated,
		"message":    "product added to cart",
		"cart":       cart,
		"stats":      stats,
	})
}

func (t CartController) UpdateItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController UpdateItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController UpdateItem").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding requestbody").Logger()
	logger.Info().Msg("decoding requestbody")
	reqBody := request.UpdateCartItem{}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"statusCode": http.StatusBadRequest,
			"error":      "invalid request body",
		})
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating requestbody").Logger()
	logger.Info().Msg("validating request body")
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(c, reqBody); err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"statusCode": http.StatusBadRequest,
			"error":      "quantity must be an integer greater than or equal to 0",
		})
		return
	}
	logger.Info().Msg("validated request body")

	userId, err := common.UserIdFromJwtToken(c)
	if err != nil {
		err = fmt.Errorf("failed getting userId from jwtToken with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"statusCode": http.StatusUnauthorized,
			"error":      inErrors.ErrTokenInvalid.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyUserID, userId).Logger()

	logger = logger.With().Str(log.KeyProcess, "updating item").Logger()
	logger.Info().Msg("updating cart item")
	c = logger.WithContext(c)
	cart, stats, removed, err := t.service.UpdateItem(
		c,
		userId,
		reqBody.ProductId,
		*reqBody.Quantity,
	)
	if err != nil {
		err = fmt.Errorf("failed updating cart item with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, errorBody(err))
		return
	}
	logger.Info().Msg("updated cart item")

	message := "quantity updated"
	if removed {
		message = "product removed from cart"
	}
	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"statusCode": http.StatusOK,
		"message":    message,
		"cart":       cart,
		"stats":      stats,
	})
}

func (t CartController) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController RemoveItem").
		Logger()

	pathValues := mux.Vars(r)
	productId := pathValues["productId"]
	logger = logger.With().Str(log.KeyProductID, productId).Logger()

	userId, err := common.UserIdFromJwtToken(c)
	if err != nil {
		err = fmt.Errorf("failed getting userId from jwtToken with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"statusCode": http.StatusUnauthorized,
			"error":      inErrors.ErrTokenInvalid.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyUserID, userId).Logger()

	logger = logger.With().Str(log.KeyProcess, "removing item").Logger()
	logger.Info().Msg("removing item from cart")
	c = logger.WithContext(c)
	cart, stats, err := t.service.RemoveItem(c, userId, productId)
	if err != nil {
		err = fmt.Errorf("failed removing item from cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, errorBody(err))
		return
	}
	logger.Info().Msg("removed item from cart")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"statusCode": http.StatusOK,
		"message":    "product removed from cart",
		"cart":       cart,
		"stats":      stats,
	})
}

func (t CartController) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController ClearCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController ClearCart").
		Logger()

	userId, err := common.UserIdFromJwtToken(c)
	if err != nil {
		err = fmt.Errorf("failed getting userId from jwtToken with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"statusCode": http.StatusUnauthorized,
			"error":      inErrors.ErrTokenInvalid.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyUserID, userId).Logger()

	logger = logger.With().Str(log.KeyProcess, "clearing cart").Logger()
	logger.Info().Msg("clearing cart")
	c = logger.WithContext(c)
	cart, stats, err := t.service.ClearCart(c, userId)
	if err != nil {
		err = fmt.Errorf("failed clearing cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, errorBody(err))
		return
	}
	logger.Info().Msg("cleared cart")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"statusCode": http.StatusOK,
		"message":    "cart cleared",
		"cart":       cart,
		"stats":      stats,
	})
}

func (t CartController) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController CheckAvailability")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartController CheckAvailability").
		Logger()

	userId, err := common.UserIdFromJwtToken(c)
	if err != nil {
		err = fmt.Errorf("failed getting userId from jwtToken with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"statusCode": http.StatusUnauthorized,
			"error":      inErrors.ErrTokenInvalid.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyUserID, userId).Logger()

	logger = logger.With().Str(log.KeyProcess, "checking availability").Logger()
	logger.Info().Msg("checking cart availability")
	c = logger.WithContext(c)
	availability, err := t.service.CheckAvailability(c, userId)
	if err != nil {
		err = fmt.Errorf("failed checking cart availability with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteJsonResponse(c, w, map[string]string{}, errorBody(err))
		return
	}
	logger.Info().Msg("checked cart availability")

	inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"statusCode":       http.StatusOK,
		"available":        availability.Available,
		"unavailableItems": availability.UnavailableItems,
		"totalItems":       availability.TotalItems,
	})
}
