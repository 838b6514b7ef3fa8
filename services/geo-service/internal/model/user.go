package model

import (
	"time"

	"github.com/luizclaudiolc/ozmap/shared/geo"
)

// User represents a person whose location is known either by address or by
// coordinates. Whichever of the two was not supplied is derived by geocoding.
type User struct {
	ID          string     `bson:"_id"                   json:"id"`
	Name        string     `bson:"name"                  json:"name"`
	Email       string     `bson:"email"                 json:"email"`
	Address     string     `bson:"address,omitempty"     json:"address,omitempty"`
	Coordinates *geo.Point `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	Regions     []string   `bson:"regions"               json:"regions"`
	CreatedAt   time.Time  `bson:"created_at"            json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at"            json:"updatedAt"`
}

// UserFields is a set of User fields, used to tell the save pipeline which
// fields a caller modified.
type UserFields uint8

const (
	UserName UserFields = 1 << iota
	UserEmail
	UserAddress
	UserCoordinates
)

// Has reports whether every field in f is part of the set.
func (s UserFields) Has(f UserFields) bool {
	return s&f == f
}
