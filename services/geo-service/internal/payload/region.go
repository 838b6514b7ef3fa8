package payload

import "github.com/luizclaudiolc/ozmap/shared/geo"

type CreateRegionRequest struct {
	Name     string       `json:"name"     validate:"required"`
	Boundary *geo.Polygon `json:"boundary" validate:"required"`
	User     string       `json:"user"`
}

// UpdateRegionRequest carries a partial update. An empty user releases the
// region from its owner.
type UpdateRegionRequest struct {
	Name     *string      `json:"name"`
	Boundary *geo.Polygon `json:"boundary"`
	User     *string      `json:"user"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
