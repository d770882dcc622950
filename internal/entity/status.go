package entity

// OrderStatus is the workflow state of an order.
type OrderStatus string

const (
	StatusPending              OrderStatus = "pending"
	StatusConfirmed            OrderStatus = "confirmado"
	StatusPreparing            OrderStatus = "em_preparacao"
	StatusReady                OrderStatus = "pronto"
	StatusAwaitingConfirmation OrderStatus = "aguardando_confirmacao"
	StatusPickedUp             OrderStatus = "coletado"
	StatusInDelivery           OrderStatus = "em_entrega"
	StatusOutForDelivery       OrderStatus = "saiu_para_entrega"
	StatusDelivered            OrderStatus = "entregue"
	StatusCancelled            OrderStatus = "cancelado"
)

// AllStatuses lists every known status in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusAwaitingConfirmation,
	StatusPickedUp,
	StatusInDelivery,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Role identifies which kind of actor a user is.
type Role string

const (
	RoleCustomer   Role = "cliente"
	RoleDriver     Role = "entregador"
	RoleRestaurant Role = "restaurante"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDriver, RoleRestaurant, RoleAdmin:
		return true
	}
	return false
}
