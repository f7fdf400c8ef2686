package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrisdamba/foodispatch/internal/models"
)

// Notifier serializes dispatch outputs onto their topics.
type Notifier struct {
	out OutputDestination
	now func() time.Time
}

func NewNotifier(out OutputDestination) *Notifier {
	return &Notifier{out: out, now: time.Now}
}

// OfferVisible hands the visible set of an offer to the push sender.
func (n *Notifier) OfferVisible(offer *models.Offer) error {
	return n.publish(models.TopicOfferVisible, models.OfferVisible{
		Timestamp:      n.now().Unix(),
		OfferID:        offer.ID,
		OrderID:        offer.OrderID,
		PartnerIDs:     offer.VisibleToPartners,
		AttemptNumber:  offer.AttemptNumber,
		SearchRadiusKm: offer.SearchRadiusKm,
		DistanceKm:     offer.DistanceKm,
		EarningAmount:  offer.EarningAmount,
		ExpiresAt:      offer.ExpiresAt.Unix(),
	})
}

func (n *Notifier) OrderDelivery(order *models.Order) error {
	return n.publish(models.TopicOrderDelivery, models.OrderDeliveryUpdate{
		Timestamp: n.now().Unix(),
		OrderID:   order.ID,
		Delivery:  order.Delivery,
	})
}

func (n *Notifier) CourierMetrics(partner *models.DeliveryPartner) error {
	return n.publish(models.TopicCourierMetrics, models.CourierMetricsUpdate{
		Timestamp:         n.now().Unix(),
		PartnerID:         partner.ID,
		OperationalStatus: partner.OperationalStatus,
		CurrentOrderID:    partner.CurrentOrderID,
		Metrics:           partner.Metrics,
	})
}

func (n *Notifier) publish(topic string, event interface{}) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	return n.out.WriteMessage(topic, msg)
}
