package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/internal/logging"
	"github.com/deicod/pizzeria/model"
	"github.com/deicod/pizzeria/store"
)

const (
	msgRestaurantNotFound = "Restaurant not found"
	msgValidationErrors   = "validation errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

type validationResponse struct {
	Errors []string `json:"errors"`
}

// createLinkRequest uses pointers so missing fields are told apart from zero.
type createLinkRequest struct {
	Price        *int   `json:"price"`
	PizzaID      *int64 `json:"pizza_id"`
	RestaurantID *int64 `json:"restaurant_id"`
}

func (s *Server) listRestaurants(c *gin.Context) {
	var forms []model.RestaurantForm
	err := s.inTx(c, func(ctx context.Context, tx store.Tx) (err error) {
		forms, err = model.RestaurantForms(ctx, tx)
		return err
	})
	if err != nil {
		s.serverError(c, err, "Failed to retrieve restaurants")
		return
	}
	c.IndentedJSON(http.StatusOK, forms)
}

func (s *Server) getRestaurant(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		c.IndentedJSON(http.StatusNotFound, errorResponse{Error: msgRestaurantNotFound})
		return
	}
	var form model.RestaurantForm
	err := s.inTx(c, func(ctx context.Context, tx store.Tx) (err error) {
		form, err = model.RestaurantFormByID(ctx, tx, id)
		return err
	})
	switch {
	case errors.IsNotFound(err):
		c.IndentedJSON(http.StatusNotFound, errorResponse{Error: msgRestaurantNotFound})
	case err != nil:
		s.serverError(c, err, "Failed to retrieve restaurant")
	default:
		c.IndentedJSON(http.StatusOK, form)
	}
}

func (s *Server) deleteRestaurant(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		c.IndentedJSON(http.StatusNotFound, errorResponse{Error: msgRestaurantNotFound})
		return
	}
	err := s.inTx(c, func(ctx context.Context, tx store.Tx) error {
		return model.DeleteRestaurant(ctx, tx, id)
	})
	switch {
	case errors.IsNotFound(err):
		c.IndentedJSON(http.StatusNotFound, errorResponse{Error: msgRestaurantNotFound})
	case err != nil:
		s.serverError(c, err, "Failed to delete restaurant")
	default:
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) listPizzas(c *gin.Context) {
	var forms []model.PizzaForm
	err := s.inTx(c, func(ctx context.Context, tx store.Tx) (err error) {
		forms, err = model.PizzaForms(ctx, tx)
		return err
	})
	if err != nil {
		s.serverError(c, err, "Failed to retrieve pizzas")
		return
	}
	c.IndentedJSON(http.StatusOK, forms)
}

// createRestaurantPizza answers every failure with the same 400 body; the
// cause is only logged.
func (s *Server) createRestaurantPizza(c *gin.Context) {
	log := logging.FromContext(c.Request.Context(), s.log)

	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debugw("Rejected restaurant_pizza payload", logging.FieldError, err.Error())
		s.validationError(c)
		return
	}
	if req.Price == nil || req.PizzaID == nil || req.RestaurantID == nil {
		log.Debugw("Rejected restaurant_pizza payload", logging.FieldError, "missing field")
		s.validationError(c)
		return
	}
	if !model.ValidPrice(*req.Price) {
		log.Debugw("Rejected restaurant_pizza price", "price", *req.Price)
		s.validationError(c)
		return
	}

	var form model.LinkForm
	err := s.inTx(c, func(ctx context.Context, tx store.Tx) (err error) {
		form, err = model.CreateLink(ctx, tx, *req.Price, *req.PizzaID, *req.RestaurantID)
		return err
	})
	if err != nil {
		if errors.IsValidation(err) {
			log.Infow("Rejected restaurant_pizza", logging.FieldError, err.Error())
		} else {
			log.Errorw("Failed to create restaurant_pizza", logging.FieldError, err.Error())
		}
		s.validationError(c)
		return
	}
	c.IndentedJSON(http.StatusCreated, form)
}

func (s *Server) inTx(c *gin.Context, fn func(context.Context, store.Tx) error) error {
	ctx := c.Request.Context()
	return s.store.InTx(ctx, func(tx store.Tx) error {
		return fn(ctx, tx)
	})
}

func (s *Server) serverError(c *gin.Context, err error, prefix string) {
	logging.FromContext(c.Request.Context(), s.log).Errorw(prefix, logging.FieldError, err.Error())
	_ = c.Error(err)
	c.IndentedJSON(http.StatusInternalServerError, errorResponse{Error: prefix + ": " + err.Error()})
}

func (s *Server) validationError(c *gin.Context) {
	c.IndentedJSON(http.StatusBadRequest, validationResponse{Errors: []string{msgValidationErrors}})
}

// parseID reads the :id path parameter. Non-integer ids name no record.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
