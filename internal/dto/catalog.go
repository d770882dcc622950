package dto

import (
	"github.com/shopspring/decimal"

	"github.com/NovaByteCorp/deliverypro/internal/entity"
)

// RestaurantResponse is a restaurant card.
type RestaurantResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	ImageURL string `json:"image_url,omitempty"`
}

// FromRestaurants maps a list of restaurants.
func FromRestaurants(rs []*entity.Restaurant) []RestaurantResponse {
	out := make([]RestaurantResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, RestaurantResponse{ID: r.ID, Name: r.Name, IsActive: r.IsActive, ImageURL: r.ImageURL})
	}
	return out
}

// ProductResponse is a menu entry.
type ProductResponse struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Ingredients  []string        `json:"ingredients,omitempty"`
	IsAvailable  bool            `json:"is_available"`
	ImageURL     string          `json:"image_url,omitempty"`
}

// FromProducts maps a menu.
func FromProducts(ps []*entity.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, ProductResponse{
			ID:           p.ID,
			RestaurantID: p.RestaurantID,
			Name:         p.Name,
			Price:        p.Price,
			Ingredients:  p.Ingredients,
			IsAvailable:  p.IsAvailable,
			ImageURL:     p.ImageURL,
		})
	}
	return out
}

// ActiveRequest toggles restaurant visibility.
type ActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// ImageResponse returns the public URL of an uploaded image.
type ImageResponse struct {
	URL string `json:"url"`
}

// SimulatedRoleRequest stores the role an admin is acting as. Empty clears it.
type SimulatedRoleRequest struct {
	Role string `json:"role" validate:"omitempty,oneof=cliente entregador restaurante admin"`
}
