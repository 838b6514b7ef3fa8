package payload

import (
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/model"
	"github.com/luizclaudiolc/ozmap/shared/geo"
)

type CreateUserRequest struct {
	Name        string           `json:"name"        validate:"required"`
	Email       string           `json:"email"       validate:"required,email"`
	Address     string           `json:"address"`
	Coordinates *geo.Coordinates `json:"coordinates"`
	Regions     []string         `json:"regions"     validate:"omitempty,dive,mongodb"`
}

// UpdateUserRequest carries a partial update; absent fields are left alone.
type UpdateUserRequest struct {
	Name        *string          `json:"name"        validate:"omitempty,min=1"`
	Email       *string          `json:"email"       validate:"omitempty,email"`
	Address     *string          `json:"address"`
	Coordinates *geo.Coordinates `json:"coordinates"`
	Regions     *[]string        `json:"regions"     validate:"omitempty,dive,mongodb"`
}

type UpdateUserResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
