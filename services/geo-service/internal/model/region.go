package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/luizclaudiolc/ozmap/shared/geo"
)

// Region is a named polygon optionally owned by a User. User holds the
// owner's id and is empty for unowned regions.
type Region struct {
	ID        string      `bson:"_id"            json:"id"`
	Name      string      `bson:"name"           json:"name"`
	Boundary  geo.Polygon `bson:"boundary"       json:"boundary"`
	User      string      `bson:"user,omitempty" json:"user,omitempty"`
	CreatedAt time.Time   `bson:"created_at"     json:"createdAt"`
	UpdatedAt time.Time   `bson:"updated_at"     json:"updatedAt"`
}

// NearbyRegion is a proximity query result: the region, its distance in
// metres from the query point and the owner's name.
type NearbyRegion struct {
	Region   `bson:",inline"`
	Distance float64 `bson:"distance"           json:"distance"`
	UserName string  `bson:"user_name,omitempty" json:"userName,omitempty"`
}

// NewID returns a fresh identifier for a User or Region.
func NewID() string {
	return bson.NewObjectID().Hex()
}
