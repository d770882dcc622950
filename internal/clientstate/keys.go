package clientstate

// Key names one value of the per-session state.
type Key string

const (
	KeyCart                Key = "cart"
	KeyFavorites           Key = "favorites"
	KeyRestaurantFavorites Key = "restaurantFavorites"
	KeyLastOrderID         Key = "last_order_id"
	KeyDeliveryAddress     Key = "delivery_address"
	KeyPaymentMethod       Key = "payment_method"
	KeySimulatedRole       Key = "simulatedRole"
)

// Known reports whether k is one of the well-known keys.
func (k Key) Known() bool {
	switch k {
	case KeyCart, KeyFavorites, KeyRestaurantFavorites, KeyLastOrderID,
		KeyDeliveryAddress, KeyPaymentMethod, KeySimulatedRole:
		return true
	}
	return false
}
