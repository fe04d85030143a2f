package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicOrderCreated          = "order.created"
	TopicOrderCancelled        = "order.cancelled"
	TopicShipmentPendingPickup = "shipment.pending_pickup"
	TopicShipmentInTransit     = "shipment.in_transit"
	TopicShipmentDelivered     = "shipment.delivered"
	TopicPurchaseRecorded      = "inventory.purchase_recorded"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderCancelled,
		TopicShipmentPendingPickup,
		TopicShipmentInTransit,
		TopicShipmentDelivered,
		TopicPurchaseRecorded,
	}
}

// OrderCreatedPayload is emitted once an order has been committed.
type OrderCreatedPayload struct {
	OrderID string            `json:"orderId"`
	Channel string            `json:"channel"`
	UserID  string            `json:"userId"`
	Total   string            `json:"total"`
	Items   []OrderItemChange `json:"items"`
}

// OrderItemChange reports the stock left for a product after the order was placed.
type OrderItemChange struct {
	ProductID      string `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	RemainingStock int    `json:"remainingStock"`
}

// ShipmentPayload is emitted on shipping status changes.
type ShipmentPayload struct {
	OrderID        string `json:"orderId"`
	From           string `json:"from"`
	To             string `json:"to"`
	CourierID      string `json:"courierId,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

// PurchaseRecordedPayload is emitted when stock is replenished.
type PurchaseRecordedPayload struct {
	PurchaseID string `json:"purchaseId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
	NewStock   int    `json:"newStock"`
}
