package api

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/chrisdamba/foodispatch/internal/dispatch"
	"github.com/chrisdamba/foodispatch/internal/models"
)

var (
	ErrBadInput = errors.New("bad input")
	ErrInternal = errors.New("internal error, try again later")
)

type HTTPError struct {
	Error string `json:"error"`
}

type AcceptRequest struct {
	PartnerID string `json:"partner_id"`
}

type StatusRequest struct {
	OperationalStatus string `json:"operational_status"`
}

type DeliveredRequest struct {
	DeliveredAt time.Time `json:"delivered_at"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type handlers struct {
	dispatcher Dispatcher
}

func healthCheckHandler(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("application/json")
	ctx.WriteString(`{"status":"OK"}`)
}

func (h *handlers) confirmOrder(ctx *fasthttp.RequestCtx) {
	if !requireMethod(ctx, fasthttp.MethodPost) {
		return
	}
	var event models.OrderConfirmed
	if !decode(ctx, &event) {
		return
	}
	if event.OrderID == "" {
		handleError(ctx, ErrBadInput, fasthttp.StatusBadRequest)
		return
	}
	offer, err := h.dispatcher.CreateOffer(ctx, event)
	if err != nil {
		handleDispatchError(ctx, err)
		return
	}
	respond(ctx, fasthttp.StatusCreated, offer)
}

func (h *handlers) getOrder(ctx *fasthttp.RequestCtx, orderID string) {
	if !requireMethod(ctx, fasthttp.MethodGet) {
		return
	}
	order, err := h.dispatcher.Order(ctx, orderID)
	if err != nil {
		handleDispatchError(ctx, err)
		return
	}
	respond(ctx, fasthttp.StatusOK, order)
}

func (h *handlers) orderDelivered(ctx *fasthttp.RequestCtx, orderID string) {
	if !requireMethod(ctx, fasthttp.MethodPost) {
		return
	}
	var req DeliveredRequest
	if len(ctx.Request.Body()) > 0 && !decode(ctx, &req) {
		return
	}
	if req.DeliveredAt.IsZero() {
		req.DeliveredAt = time.Now()
	}
	record, err := h.dispatcher.CompleteDelivery(ctx, orderID, req.DeliveredAt)
	if err != nil {
		handleDispatchError(ctx, err)
		return
	}
	respond(ctx, fasthttp.StatusOK, record)
}

func (h *handlers) cancelOrder(ctx *fasthttp.RequestCtx, orderID string) {
	if !requireMethod(ctx, fasthttp.MethodPost) {
		return
	}
	var req CancelRequest
	if len(ctx.Request.Body()) > 0 && !decode(ctx, &req) {
		return
	}
	if err := h.dispatcher.CancelOrder(ctx, orderID, req.Reason); err != nil {
		handleDispatchError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (h *handlers) getOffer(ctx *fasthttp.RequestCtx, offerID string) {
	if !requireMethod(ctx, fasthttp.MethodGet) {
		return
	}
	offer, err := h.dispatcher.Offer(ctx, offerID)
	if err != nil {
		handleDispatchError(ctx, err)
		return
	}
	respond(ctx, fasthttp.StatusOK, offer)
}

func (h *handlers) acceptOffer(ctx *fasthttp.RequestCtx, offerID string) {
	if !requireMethod(ctx, fasthttp.MethodPost) {
		return
	}
	var req AcceptRequest
	if !decode(ctx, &req) {
		return
	}
	if req.PartnerID == "" {
		handleError(ctx, ErrBadInput, fasthttp.StatusBadRequest)
		return
	}
	assignment, err := h.dispatcher.AcceptOffer(ctx, offerID, req.PartnerID)
	if err != nil {
		handleDispatchError(ctx, err)
		return
	}
	respond(ctx, fasthttp.StatusOK, assignment)
}

func (h *handlers) getPartner(ctx *fasthttp.RequestCtx, partnerID string) {
	if !requireMethod(ctx, fasthttp.MethodGet) {
		return
	}
	partner, err := h.dispatcher.Partner(ctx, partnerID)
	if err != nil {
		handleDispatchError(ctx, err)
		return
	}
	respond(ctx, fasthttp.StatusOK, partner)
}

func (h *handlers) partnerOffers(ctx *fasthttp.RequestCtx, partnerID string) {
	if !requireMethod(ctx, fasthttp.MethodGet) {
		return
	}
	offers, err := h.dispatcher.OpenOffersFor(ctx, partnerID)
	if err != nil {
		handleDispatchError(ctx, err)
		return
	}
	if offers == nil {
		offers = []*models.Offer{}
	}
	respond(ctx, fasthttp.StatusOK, offers)
}

func (h *handlers) updateLocation(ctx *fasthttp.RequestCtx, partnerID string) {
	if !requireMethod(ctx, fasthttp.MethodPost) {
		return
	}
	var location models.Location
	if !decode(ctx, &location) {
		return
	}
	if !location.Valid() {
		handleError(ctx, ErrBadInput, fasthttp.StatusBadRequest)
		return
	}
	if err := h.dispatcher.UpdateCourierLocation(ctx, partnerID, location); err != nil {
		handleDispatchError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (h *handlers) setStatus(ctx *fasthttp.RequestCtx, partnerID string) {
	if !requireMethod(ctx, fasthttp.MethodPost) {
		return
	}
	var req StatusRequest
	if !decode(ctx, &req) {
		return
	}
	partner, err := h.dispatcher.SetOperationalStatus(ctx, partnerID, req.OperationalStatus)
	if err != nil {
		handleDispatchError(ctx, err)
		return
	}
	respond(ctx, fasthttp.StatusOK, partner)
}

func requireMethod(ctx *fasthttp.RequestCtx, method string) bool {
	if string(ctx.Method()) != method {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decode(ctx *fasthttp.RequestCtx, v any) bool {
	if err := json.Unmarshal(ctx.Request.Body(), v); err != nil {
		zap.L().Debug("bad request body", zap.Error(err))
		handleError(ctx, ErrBadInput, fasthttp.StatusBadRequest)
		return false
	}
	return true
}

func respond(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func handleError(ctx *fasthttp.RequestCtx, err error, status int) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	json.NewEncoder(ctx).Encode(HTTPError{
		Error: err.Error(),
	})
}

// handleDispatchError maps dispatch errors to status codes; anything unrecognised is a 500.
func handleDispatchError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, dispatch.ErrOfferNotFound),
		errors.Is(err, dispatch.ErrOrderNotFound),
		errors.Is(err, dispatch.ErrCourierNotFound):
		handleError(ctx, err, fasthttp.StatusNotFound)
	case errors.Is(err, dispatch.ErrOfferUnavailable),
		errors.Is(err, dispatch.ErrPartnerUnavailable),
		errors.Is(err, dispatch.ErrOrderNotWaiting),
		errors.Is(err, dispatch.ErrActiveOfferExists),
		errors.Is(err, dispatch.ErrNotAssigned):
		handleError(ctx, err, fasthttp.StatusConflict)
	case errors.Is(err, dispatch.ErrMissingCoordinates),
		errors.Is(err, dispatch.ErrInvalidStatus):
		handleError(ctx, err, fasthttp.StatusUnprocessableEntity)
	default:
		zap.L().Error("dispatch request failed", zap.String("path", string(ctx.Path())), zap.Error(err))
		handleError(ctx, ErrInternal, fasthttp.StatusInternalServerError)
	}
}
