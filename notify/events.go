package notify

import "cafe-ordering-api/models"

// OrderEvents turns order lifecycle changes into room broadcasts.
type OrderEvents struct {
	pub Publisher
}

func NewOrderEvents(pub Publisher) *OrderEvents {
	return &OrderEvents{pub: pub}
}

// OrderCreated tells every admin dashboard about a new order.
func (e *OrderEvents) OrderCreated(o *models.Order) {
	e.pub.Publish([]string{RoomAdmin}, EventNewOrder, o)
}

// OrderUpdated reaches the admin dashboards and the customer tracking o.
func (e *OrderEvents) OrderUpdated(o *models.Order) {
	e.pub.Publish([]string{RoomAdmin, OrderRoom(o.ID)}, EventOrderUpdated, o)
}
