// Package api exposes the partner-facing dispatch operations over HTTP.
package api

import (
	"context"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/chrisdamba/foodispatch/internal/dispatch"
	"github.com/chrisdamba/foodispatch/internal/models"
)

const maxBodySize = 1 << 20 // 1 MB

// Dispatcher is the subset of dispatch.Service served over HTTP.
type Dispatcher interface {
	CreateOffer(ctx context.Context, event models.OrderConfirmed) (*models.Offer, error)
	AcceptOffer(ctx context.Context, offerID, partnerID string) (*dispatch.Assignment, error)
	CompleteDelivery(ctx context.Context, orderID string, deliveredAt time.Time) (*models.EarningRecord, error)
	CancelOrder(ctx context.Context, orderID, reason string) error
	UpdateCourierLocation(ctx context.Context, partnerID string, location models.Location) error
	SetOperationalStatus(ctx context.Context, partnerID, status string) (*models.DeliveryPartner, error)
	OpenOffersFor(ctx context.Context, partnerID string) ([]*models.Offer, error)
	Offer(ctx context.Context, offerID string) (*models.Offer, error)
	Order(ctx context.Context, orderID string) (*models.Order, error)
	Partner(ctx context.Context, partnerID string) (*models.DeliveryPartner, error)
}

func NewServer(config models.HTTPConfig, dispatcher Dispatcher) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:            NewHandler(config.BasePath, dispatcher),
		Name:               "foodispatch",
		MaxRequestBodySize: maxBodySize,
		ReadTimeout:        config.ReadTimeout,
		WriteTimeout:       config.WriteTimeout,
		IdleTimeout:        config.IdleTimeout,
		Concurrency:        config.Concurrency,
	}
}

// NewHandler routes /<basePath>/<resource>/<id>[/<action>] requests.
func NewHandler(basePath string, dispatcher Dispatcher) fasthttp.RequestHandler {
	basePath = strings.Trim(basePath, "/")
	h := &handlers{dispatcher: dispatcher}

	return func(ctx *fasthttp.RequestCtx) {
		parts := strings.Split(strings.Trim(string(ctx.Path()), "/"), "/")
		if len(parts) < 2 || parts[0] != basePath {
			ctx.Error("not found", fasthttp.StatusNotFound)
			return
		}

		switch parts[1] {
		case "health":
			healthCheckHandler(ctx)
		case "orders":
			switch {
			case len(parts) == 2:
				h.confirmOrder(ctx)
			case len(parts) == 3:
				h.getOrder(ctx, parts[2])
			case len(parts) == 4 && parts[3] == "delivered":
				h.orderDelivered(ctx, parts[2])
			case len(parts) == 4 && parts[3] == "cancel":
				h.cancelOrder(ctx, parts[2])
			default:
				ctx.Error("not found", fasthttp.StatusNotFound)
			}
		case "offers":
			switch {
			case len(parts) == 3:
				h.getOffer(ctx, parts[2])
			case len(parts) == 4 && parts[3] == "accept":
				h.acceptOffer(ctx, parts[2])
			default:
				ctx.Error("not found", fasthttp.StatusNotFound)
			}
		case "partners":
			switch {
			case len(parts) == 3:
				h.getPartner(ctx, parts[2])
			case len(parts) == 4 && parts[3] == "offers":
				h.partnerOffers(ctx, parts[2])
			case len(parts) == 4 && parts[3] == "location":
				h.updateLocation(ctx, parts[2])
			case len(parts) == 4 && parts[3] == "status":
				h.setStatus(ctx, parts[2])
			default:
				ctx.Error("not found", fasthttp.StatusNotFound)
			}
		default:
			ctx.Error("not found", fasthttp.StatusNotFound)
		}
	}
}
