package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/model"
	"github.com/luizclaudiolc/ozmap/shared/geo"
)

// Geocoder resolves addresses and coordinates into each other.
type Geocoder interface {
	ResolveAddress(ctx context.Context, c geo.Coordinates) (string, error)
	ResolveCoordinates(ctx context.Context, address string) (geo.Coordinates, error)
}

// GeocodeHook fills in whichever of a user's address or coordinates was not
// supplied. It runs before every write of a user.
type GeocodeHook struct {
	geocoder Geocoder
}

func NewGeocodeHook(geocoder Geocoder) *GeocodeHook {
	return &GeocodeHook{geocoder: geocoder}
}

// BeforeSave resolves the address when the coordinates changed, otherwise
// the coordinates when the address changed. Fields that did not change are
// left alone.
func (h *GeocodeHook) BeforeSave(ctx context.Context, user *model.User, changed model.UserFields) error {
	switch {
	case changed.Has(model.UserCoordinates) && user.Coordinates != nil:
		c, err := user.Coordinates.LatLng()
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrInvalidUserData, err)
		}

		address, err := h.geocoder.ResolveAddress(ctx, c)
		if err != nil {
			return err
		}
		user.Address = address

	case changed.Has(model.UserAddress) && strings.TrimSpace(user.Address) != "":
		c, err := h.geocoder.ResolveCoordinates(ctx, user.Address)
		if err != nil {
			return err
		}
		user.Coordinates = geo.NewPoint(c)
	}

	return nil
}
