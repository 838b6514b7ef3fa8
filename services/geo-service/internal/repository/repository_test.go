package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/model"
	"github.com/luizclaudiolc/ozmap/shared/geo"
)

const testMongoURIEnv = "GEO_SERVICE_TEST_MONGO_URI"

var testPolygon = geo.Polygon{
	Type: geo.TypePolygon,
	Coordinates: [][][]float64{{
		{-43.1, -22.5}, {-43.0, -22.5}, {-43.0, -22.4}, {-43.1, -22.4}, {-43.1, -22.5},
	}},
}

// setupDatabase connects to the replica set named by GEO_SERVICE_TEST_MONGO_URI
// and returns a throwaway database dropped when the test ends.
func setupDatabase(t *testing.T) (*mongo.Client, *mongo.Database) {
	t.Helper()

	uri := os.Getenv(testMongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set", testMongoURIEnv)
	}

	ctx := context.Background()
	client, err := Connect(ctx, uri, 10*time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	db := client.Database("geo_service_test_" + model.NewID())
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	return client, db
}

func TestRegionQueries(t *testing.T) {
	_, db := setupDatabase(t)
	ctx := context.Background()
	logger := zerolog.Nop()

	users := NewUserMongoRepository(ctx, &logger, db)
	regions := NewRegionMongoRepository(ctx, &logger, db)

	owner, err := users.CreateUser(ctx, &model.User{Name: "Ana", Email: "ana@example.com", Address: "Rua A"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	region, err := regions.CreateRegion(ctx, &model.Region{Name: "Centro", Boundary: testPolygon, User: owner.ID})
	if err != nil {
		t.Fatalf("CreateRegion: %v", err)
	}

	t.Run("contains", func(t *testing.T) {
		found, err := regions.FindContaining(ctx, geo.Coordinates{Lat: -22.45, Lng: -43.05})
		if err != nil {
			t.Fatalf("FindContaining: %v", err)
		}
		if found.ID != region.ID {
			t.Fatalf("FindContaining = %s, want %s", found.ID, region.ID)
		}

		_, err = regions.FindContaining(ctx, geo.Coordinates{Lat: 10, Lng: 10})
		if !errors.Is(err, mongo.ErrNoDocuments) {
			t.Fatalf("FindContaining outside = %v, want ErrNoDocuments", err)
		}
	})

	t.Run("near joins owner name", func(t *testing.T) {
		near, err := regions.FindNear(ctx, NearRegionsParams{
			Point:    geo.Coordinates{Lat: -22.45, Lng: -43.05},
			Distance: 1000,
		})
		if err != nil {
			t.Fatalf("FindNear: %v", err)
		}
		if len(near) != 1 || near[0].ID != region.ID || near[0].UserName != "Ana" {
			t.Fatalf("FindNear = %+v", near)
		}
		if near[0].Distance != 0 {
			t.Fatalf("distance from inside the polygon = %v, want 0", near[0].Distance)
		}
	})

	t.Run("near excludes user", func(t *testing.T) {
		near, err := regions.FindNear(ctx, NearRegionsParams{
			Point:       geo.Coordinates{Lat: -22.45, Lng: -43.05},
			Distance:    1000,
			ExcludeUser: owner.ID,
		})
		if err != nil {
			t.Fatalf("FindNear: %v", err)
		}
		if len(near) != 0 {
			t.Fatalf("FindNear excluding owner = %+v, want none", near)
		}
	})
}

func TestTransactionRollsBack(t *testing.T) {
	client, db := setupDatabase(t)
	ctx := context.Background()
	logger := zerolog.Nop()

	users := NewUserMongoRepository(ctx, &logger, db)
	regions := NewRegionMongoRepository(ctx, &logger, db)
	txn := NewMongoTransactor(client)

	owner, err := users.CreateUser(ctx, &model.User{Name: "Ana", Email: "ana@example.com", Address: "Rua A"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	errBoom := errors.New("boom")
	var regionID string
	err = txn.WithTransaction(ctx, func(ctx context.Context) error {
		region, err := regions.CreateRegion(ctx, &model.Region{Name: "Centro", Boundary: testPolygon, User: owner.ID})
		if err != nil {
			return err
		}
		regionID = region.ID
		if err := users.AddRegion(ctx, owner.ID, region.ID); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("WithTransaction = %v, want errBoom", err)
	}

	if _, err := regions.GetRegion(ctx, regionID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("GetRegion after rollback = %v, want ErrNoDocuments", err)
	}
	got, err := users.GetUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if len(got.Regions) != 0 {
		t.Fatalf("regions after rollback = %v, want none", got.Regions)
	}
}

func TestOwnershipHelpers(t *testing.T) {
	_, db := setupDatabase(t)
	ctx := context.Background()
	logger := zerolog.Nop()

	users := NewUserMongoRepository(ctx, &logger, db)
	regions := NewRegionMongoRepository(ctx, &logger, db)

	a, _ := users.CreateUser(ctx, &model.User{Name: "A", Email: "a@example.com", Address: "x"})
	b, _ := users.CreateUser(ctx, &model.User{Name: "B", Email: "b@example.com", Address: "y"})
	r1, _ := regions.CreateRegion(ctx, &model.Region{Name: "r1", Boundary: testPolygon, User: a.ID})
	r2, _ := regions.CreateRegion(ctx, &model.Region{Name: "r2", Boundary: testPolygon, User: a.ID})

	if err := users.AddRegion(ctx, a.ID, r1.ID); err != nil {
		t.Fatalf("AddRegion: %v", err)
	}
	if err := users.AddRegion(ctx, a.ID, r1.ID); err != nil {
		t.Fatalf("AddRegion twice: %v", err)
	}
	if err := users.AddRegion(ctx, "missing", r1.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("AddRegion on missing user = %v, want ErrNoDocuments", err)
	}
	if err := users.PullRegions(ctx, []string{r1.ID}, b.ID); err != nil {
		t.Fatalf("PullRegions: %v", err)
	}
	got, _ := users.GetUser(ctx, a.ID)
	if len(got.Regions) != 0 {
		t.Fatalf("regions after pull = %v", got.Regions)
	}

	if err := regions.ClearOwner(ctx, a.ID, []string{r2.ID}); err != nil {
		t.Fatalf("ClearOwner: %v", err)
	}
	cleared, _ := regions.GetRegion(ctx, r1.ID)
	kept, _ := regions.GetRegion(ctx, r2.ID)
	if cleared.User != "" || kept.User != a.ID {
		t.Fatalf("owners after ClearOwner = %q, %q", cleared.User, kept.User)
	}

	if n, err := regions.CountRegionsByIDs(ctx, []string{r1.ID, r2.ID, "missing"}); err != nil || n != 2 {
		t.Fatalf("CountRegionsByIDs = %d, %v; want 2", n, err)
	}
}
