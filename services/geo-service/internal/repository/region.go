package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/model"
	"github.com/luizclaudiolc/ozmap/shared/geo"
)

// RegionRepository defines the interface for region-related database operations.
type RegionRepository interface {
	CreateRegion(ctx context.Context, region *model.Region) (*model.Region, error)
	GetRegion(ctx context.Context, id string) (*model.Region, error)
	UpdateRegion(ctx context.Context, id string, params UpdateRegionParams) (*model.Region, error)
	DeleteRegion(ctx context.Context, id string) (*model.Region, error)
	ListRegions(ctx context.Context, params FilterRegionsParams) ([]*model.Region, error)
	CountRegions(ctx context.Context) (int64, error)

	// CountRegionsByIDs returns how many of ids exist.
	CountRegionsByIDs(ctx context.Context, ids []string) (int64, error)

	// AssignOwner sets the owner of every region in ids to userID.
	AssignOwner(ctx context.Context, ids []string, userID string) error

	// ClearOwner unsets the owner of every region owned by userID whose id
	// is not in keep.
	ClearOwner(ctx context.Context, userID string, keep []string) error

	// FindContaining returns one region whose boundary intersects c.
	FindContaining(ctx context.Context, c geo.Coordinates) (*model.Region, error)

	// FindNear returns the regions within params.Distance metres of
	// params.Point, nearest first.
	FindNear(ctx context.Context, params NearRegionsParams) ([]*model.NearbyRegion, error)
}

// UpdateRegionParams defines the optional parameters for updating a region.
// Only the fields that are not nil will be updated; a User pointing to an
// empty string removes the owner.
type UpdateRegionParams struct {
	Name     *string
	Boundary *geo.Polygon
	User     *string
}

// FilterRegionsParams defines the parameters for paginating regions. A zero
// Limit returns every region.
type FilterRegionsParams struct {
	Limit  uint64
	Offset uint64
}

// NearRegionsParams defines a proximity query.
type NearRegionsParams struct {
	Point       geo.Coordinates
	Distance    float64
	ExcludeUser string
}

const regionCollection = "regions"

type regionMongoRepository struct {
	db *mongo.Database
}

func NewRegionMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) RegionRepository {
	collection := db.Collection(regionCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "boundary", Value: "2dsphere"}},
		},
		{
			Keys: bson.D{{Key: "user", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create region indexes")
	}

	return &regionMongoRepository{db: db}
}

func (r *regionMongoRepository) CreateRegion(ctx context.Context, region *model.Region) (*model.Region, error) {
	now := time.Now().UTC()
	region.CreatedAt = now
	region.UpdatedAt = now

	if region.ID == "" {
		region.ID = model.NewID()
	}

	if _, err := r.db.Collection(regionCollection).InsertOne(ctx, region); err != nil {
		return nil, err
	}

	return region, nil
}

func (r *regionMongoRepository) GetRegion(ctx context.Context, id string) (*model.Region, error) {
	result := r.db.Collection(regionCollection).FindOne(ctx, bson.M{"_id": id})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var region model.Region
	if err := result.Decode(&region); err != nil {
		return nil, err
	}

	return &region, nil
}

func (r *regionMongoRepository) UpdateRegion(
	ctx context.Context,
	id string,
	params UpdateRegionParams,
) (*model.Region, error) {
	setMap := bson.M{}
	unsetMap := bson.M{}

	if params.Name != nil {
		setMap["name"] = *params.Name
	}
	if params.Boundary != nil {
		setMap["boundary"] = params.Boundary
	}
	if params.User != nil {
		if *params.User == "" {
			unsetMap["user"] = ""
		} else {
			setMap["user"] = *params.User
		}
	}

	if len(setMap) == 0 && len(unsetMap) == 0 {
		return nil, errors.New("no region fields to update")
	}

	setMap["updated_at"] = time.Now().UTC()

	update := bson.M{"$set": setMap}
	if len(unsetMap) > 0 {
		update["$unset"] = unsetMap
	}

	result := r.db.Collection(regionCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var region model.Region
	if err := result.Decode(&region); err != nil {
		return nil, err
	}

	return &region, nil
}

func (r *regionMongoRepository) DeleteRegion(ctx context.Context, id string) (*model.Region, error) {
	result := r.db.Collection(regionCollection).FindOneAndDelete(ctx, bson.M{"_id": id})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var region model.Region
	if err := result.Decode(&region); err != nil {
		return nil, err
	}

	return &region, nil
}

func (r *regionMongoRepository) ListRegions(
	ctx context.Context,
	params FilterRegionsParams,
) ([]*model.Region, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if params.Limit > 0 {
		findOptions.SetLimit(int64(params.Limit))
	}
	if params.Offset > 0 {
		findOptions.SetSkip(int64(params.Offset))
	}

	cursor, err := r.db.Collection(regionCollection).Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	regions := []*model.Region{}
	if err := cursor.All(ctx, &regions); err != nil {
		return nil, err
	}

	return regions, nil
}

func (r *regionMongoRepository) CountRegions(ctx context.Context) (int64, error) {
	return r.db.Collection(regionCollection).CountDocuments(ctx, bson.M{})
}

func (r *regionMongoRepository) CountRegionsByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	return r.db.Collection(regionCollection).CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *regionMongoRepository) AssignOwner(ctx context.Context, ids []string, userID string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.Collection(regionCollection).UpdateMany(
		ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"user": userID, "updated_at": time.Now().UTC()}},
	)
	return err
}

func (r *regionMongoRepository) ClearOwner(ctx context.Context, userID string, keep []string) error {
	filter := bson.M{"user": userID}
	if len(keep) > 0 {
		filter["_id"] = bson.M{"$nin": keep}
	}

	_, err := r.db.Collection(regionCollection).UpdateMany(
		ctx,
		filter,
		bson.M{
			"$unset": bson.M{"user": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		},
	)
	return err
}

func (r *regionMongoRepository) FindContaining(ctx context.Context, c geo.Coordinates) (*model.Region, error) {
	filter := bson.M{
		"boundary": bson.M{
			"$geoIntersects": bson.M{"$geometry": geo.NewPoint(c)},
		},
	}

	result := r.db.Collection(regionCollection).FindOne(ctx, filter)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var region model.Region
	if err := result.Decode(&region); err != nil {
		return nil, err
	}

	return &region, nil
}

func (r *regionMongoRepository) FindNear(
	ctx context.Context,
	params NearRegionsParams,
) ([]*model.NearbyRegion, error) {
	query := bson.M{}
	if params.ExcludeUser != "" {
		query["user"] = bson.M{"$ne": params.ExcludeUser}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: geo.NewPoint(params.Point)},
			{Key: "key", Value: "boundary"},
			{Key: "distanceField", Value: "distance"},
			{Key: "maxDistance", Value: params.Distance},
			{Key: "query", Value: query},
			{Key: "spherical", Value: true},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: userCollection},
			{Key: "localField", Value: "user"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "owner"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "user_name", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$owner.name", 0}}}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "owner", Value: 0}}}},
	}

	cursor, err := r.db.Collection(regionCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	regions := []*model.NearbyRegion{}
	if err := cursor.All(ctx, &regions); err != nil {
		return nil, err
	}

	return regions, nil
}
