package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/luizclaudiolc/ozmap/shared/geo"
)

var (
	ErrInvalidUserData              = errors.New("invalid user data")
	ErrInvalidRegionData            = errors.New("invalid region data")
	ErrAddressOrCoordinatesConflict = errors.New("either address or coordinates must be provided, but not both")
	ErrInvalidPolygon               = geo.ErrInvalidPolygon
)

// ValidateNewUser enforces the creation rules: name and email are required
// and exactly one of address or coordinates is supplied.
func ValidateNewUser(u *User) error {
	if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: name and email are required", ErrInvalidUserData)
	}

	hasAddress := strings.TrimSpace(u.Address) != ""
	hasCoordinates := u.Coordinates != nil

	switch {
	case hasAddress && hasCoordinates:
		return fmt.Errorf("%w: %w", ErrInvalidUserData, ErrAddressOrCoordinatesConflict)
	case !hasAddress && !hasCoordinates:
		return fmt.Errorf("%w: address or coordinates are required", ErrInvalidUserData)
	case hasCoordinates:
		return ValidatePoint(u.Coordinates)
	}

	return nil
}

// ValidatePoint checks a user's coordinates.
func ValidatePoint(p *geo.Point) error {
	c, err := p.LatLng()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUserData, err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUserData, err)
	}

	return nil
}

// ValidateRegion checks the fields required to persist r.
func ValidateRegion(r *Region) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRegionData)
	}

	return r.Boundary.Validate()
}
