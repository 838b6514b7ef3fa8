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

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*model.User, error)
	DeleteUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, params FilterUsersParams) ([]*model.User, error)
	CountUsers(ctx context.Context) (int64, error)

	// AddRegion adds regionID to the user's regions unless already present.
	// It returns mongo.ErrNoDocuments when the user does not exist.
	AddRegion(ctx context.Context, userID, regionID string) error

	// RemoveRegion removes regionID from the user's regions. A missing user
	// is not an error.
	RemoveRegion(ctx context.Context, userID, regionID string) error

	// PullRegions removes every id in regionIDs from all users except
	// exceptUserID.
	PullRegions(ctx context.Context, regionIDs []string, exceptUserID string) error
}

// UpdateUserParams defines the optional parameters for updating a user.
// Only the fields that are not nil will be updated.
type UpdateUserParams struct {
	Name        *string
	Email       *string
	Address     *string
	Coordinates *geo.Point
	Regions     *[]string
}

// FilterUsersParams defines the parameters for paginating users. A zero
// Limit returns every user.
type FilterUsersParams struct {
	Limit  uint64
	Offset uint64
}

const userCollection = "users"

type userMongoRepository struct {
	db *mongo.Database
}

func NewUserMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) UserRepository {
	collection := db.Collection(userCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "regions", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create user indexes")
	}

	return &userMongoRepository{db: db}
}

func (r *userMongoRepository) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.ID == "" {
		user.ID = model.NewID()
	}
	if user.Regions == nil {
		user.Regions = []string{}
	}

	if _, err := r.db.Collection(userCollection).InsertOne(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userMongoRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	result := r.db.Collection(userCollection).FindOne(ctx, bson.M{"_id": id})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) UpdateUser(
	ctx context.Context,
	id string,
	params UpdateUserParams,
) (*model.User, error) {
	updateMap := bson.M{}
	if params.Name != nil {
		updateMap["name"] = *params.Name
	}
	if params.Email != nil {
		updateMap["email"] = *params.Email
	}
	if params.Address != nil {
		updateMap["address"] = *params.Address
	}
	if params.Coordinates != nil {
		updateMap["coordinates"] = params.Coordinates
	}
	if params.Regions != nil {
		regions := *params.Regions
		if regions == nil {
			regions = []string{}
		}
		updateMap["regions"] = regions
	}

	if len(updateMap) == 0 {
		return nil, errors.New("no user fields to update")
	}

	updateMap["updated_at"] = time.Now().UTC()

	result := r.db.Collection(userCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) DeleteUser(ctx context.Context, id string) (*model.User, error) {
	result := r.db.Collection(userCollection).FindOneAndDelete(ctx, bson.M{"_id": id})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) ListUsers(ctx context.Context, params FilterUsersParams) ([]*model.User, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if params.Limit > 0 {
		findOptions.SetLimit(int64(params.Limit))
	}
	if params.Offset > 0 {
		findOptions.SetSkip(int64(params.Offset))
	}

	cursor, err := r.db.Collection(userCollection).Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []*model.User{}
	for cursor.Next(ctx) {
		var user model.User
		if err := cursor.Decode(&user); err != nil {
			return nil, err
		}
		users = append(users, &user)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userMongoRepository) CountUsers(ctx context.Context) (int64, error) {
	return r.db.Collection(userCollection).CountDocuments(ctx, bson.M{})
}

func (r *userMongoRepository) AddRegion(ctx context.Context, userID, regionID string) error {
	result, err := r.db.Collection(userCollection).UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{
			"$addToSet": bson.M{"regions": regionID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	return nil
}

func (r *userMongoRepository) RemoveRegion(ctx context.Context, userID, regionID string) error {
	_, err := r.db.Collection(userCollection).UpdateOne(
		ctx,
		bson.M{"_id": userID, "regions": regionID},
		bson.M{
			"$pull": bson.M{"regions": regionID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	return err
}

func (r *userMongoRepository) PullRegions(ctx context.Context, regionIDs []string, exceptUserID string) error {
	if len(regionIDs) == 0 {
		return nil
	}

	_, err := r.db.Collection(userCollection).UpdateMany(
		ctx,
		bson.M{
			"_id":     bson.M{"$ne": exceptUserID},
			"regions": bson.M{"$in": regionIDs},
		},
		bson.M{
			"$pull": bson.M{"regions": bson.M{"$in": regionIDs}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	return err
}
