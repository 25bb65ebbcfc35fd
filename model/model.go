// Package model defines the POS resource records exchanged with the backend
// and held in the terminal's state store.
package model

import "time"

// Role is the operator's role. Shift gating branches on it exhaustively;
// ad hoc string comparisons belong nowhere else.
type Role string

const (
	RoleCashier Role = "cashier"
	RoleManager Role = "manager"
)

// RequiresShift reports whether operators with this role must have an open
// shift before using order-creation features. Unknown roles are gated
// conservatively.
func (r Role) RequiresShift() bool {
	switch r {
	case RoleManager:
		return false
	case RoleCashier:
		return true
	default:
		return true
	}
}

// User is the authenticated operator profile.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// Category groups meals on the menu.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Meal is a sellable menu item. Category may arrive from the backend as a
// bare id or a populated object.
type Meal struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Category    Ref       `json:"category"`
	Available   bool      `json:"available"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// StockItem is an inventory entry.
type StockItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Quantity  float64   `json:"quantity"`
	Unit      string    `json:"unit,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Shift is a bounded work session for a cashier, bracketed by a start and an
// end balance. Orders created during the shift are attributed to it.
type Shift struct {
	ID           string     `json:"id"`
	Cashier      Ref        `json:"cashier"`
	StartBalance float64    `json:"startBalance"`
	EndBalance   *float64   `json:"endBalance,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
}

// Open reports whether the shift has not been ended yet.
func (s Shift) Open() bool { return s.EndedAt == nil }

// OrderStatus tracks an order through the kitchen.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderItem is one line of an order. Name and Price are denormalized at
// creation time so the receipt stays stable if the meal changes later.
type OrderItem struct {
	Meal     Ref     `json:"meal"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is a customer order attributed to a table and a shift.
type Order struct {
	ID        string      `json:"id"`
	Table     Ref         `json:"table"`
	Shift     Ref         `json:"shift"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt,omitempty"`
}

// PaymentMethod is how an order was settled.
type PaymentMethod string

const (
	PayCash PaymentMethod = "cash"
	PayCard PaymentMethod = "card"
)

// Payment records the settlement of an order.
type Payment struct {
	ID        string        `json:"id"`
	Order     Ref           `json:"order"`
	Amount    float64       `json:"amount"`
	Method    PaymentMethod `json:"method"`
	CreatedAt time.Time     `json:"createdAt,omitempty"`
}

// Table is a seating position orders are attributed to.
type Table struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Seats    int    `json:"seats,omitempty"`
	Occupied bool   `json:"occupied"`
}
