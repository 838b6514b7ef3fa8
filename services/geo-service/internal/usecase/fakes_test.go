package usecase

import (
	"context"
	"errors"
	"slices"
	"sort"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/model"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/repository"
	"github.com/luizclaudiolc/ozmap/shared/geo"
)

var errInjected = errors.New("injected failure")

// store is an in-memory stand-in for the users and regions collections.
type store struct {
	users   map[string]model.User
	regions map[string]model.Region
	failOn  string
}

func newStore() *store {
	return &store{users: map[string]model.User{}, regions: map[string]model.Region{}}
}

func (s *store) fail(op string) error {
	if s.failOn == op {
		return errInjected
	}
	return nil
}

func (s *store) snapshot() (map[string]model.User, map[string]model.Region) {
	users := make(map[string]model.User, len(s.users))
	for id, u := range s.users {
		u.Regions = slices.Clone(u.Regions)
		users[id] = u
	}
	regions := make(map[string]model.Region, len(s.regions))
	for id, r := range s.regions {
		regions[id] = r
	}
	return users, regions
}

// memTransactor restores the store when fn fails.
type memTransactor struct {
	s         *store
	commits   int
	rollbacks int
}

func (t *memTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	users, regions := t.s.snapshot()
	if err := fn(ctx); err != nil {
		t.s.users, t.s.regions = users, regions
		t.rollbacks++
		return err
	}
	t.commits++
	return nil
}

type memUserRepo struct{ s *store }

func copyUser(u model.User) *model.User {
	u.Regions = slices.Clone(u.Regions)
	if u.Regions == nil {
		u.Regions = []string{}
	}
	return &u
}

func (r *memUserRepo) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	if err := r.s.fail("CreateUser"); err != nil {
		return nil, err
	}
	if user.ID == "" {
		user.ID = model.NewID()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *copyUser(*user)
	return copyUser(*user), nil
}

func (r *memUserRepo) GetUser(_ context.Context, id string) (*model.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return copyUser(u), nil
}

func (r *memUserRepo) UpdateUser(
	_ context.Context,
	id string,
	params repository.UpdateUserParams,
) (*model.User, error) {
	if err := r.s.fail("UpdateUser"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	if params.Name != nil {
		u.Name = *params.Name
	}
	if params.Email != nil {
		u.Email = *params.Email
	}
	if params.Address != nil {
		u.Address = *params.Address
	}
	if params.Coordinates != nil {
		u.Coordinates = params.Coordinates
	}
	if params.Regions != nil {
		u.Regions = slices.Clone(*params.Regions)
	}
	u.UpdatedAt = time.Now()
	r.s.users[id] = u
	return copyUser(u), nil
}

func (r *memUserRepo) DeleteUser(_ context.Context, id string) (*model.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	delete(r.s.users, id)
	return copyUser(u), nil
}

func (r *memUserRepo) ListUsers(_ context.Context, params repository.FilterUsersParams) ([]*model.User, error) {
	ids := make([]string, 0, len(r.s.users))
	for id := range r.s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	users := []*model.User{}
	for i, id := range ids {
		if uint64(i) < params.Offset {
			continue
		}
		if params.Limit > 0 && uint64(len(users)) == params.Limit {
			break
		}
		users = append(users, copyUser(r.s.users[id]))
	}
	return users, nil
}

func (r *memUserRepo) CountUsers(context.Context) (int64, error) {
	return int64(len(r.s.users)), nil
}

func (r *memUserRepo) AddRegion(_ context.Context, userID, regionID string) error {
	if err := r.s.fail("AddRegion"); err != nil {
		return err
	}
	u, ok := r.s.users[userID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	if !slices.Contains(u.Regions, regionID) {
		u.Regions = append(slices.Clone(u.Regions), regionID)
	}
	r.s.users[userID] = u
	return nil
}

func (r *memUserRepo) RemoveRegion(_ context.Context, userID, regionID string) error {
	if err := r.s.fail("RemoveRegion"); err != nil {
		return err
	}
	u, ok := r.s.users[userID]
	if !ok {
		return nil
	}
	u.Regions = slices.DeleteFunc(slices.Clone(u.Regions), func(id string) bool { return id == regionID })
	r.s.users[userID] = u
	return nil
}

func (r *memUserRepo) PullRegions(_ context.Context, regionIDs []string, exceptUserID string) error {
	for id, u := range r.s.users {
		if id == exceptUserID {
			continue
		}
		u.Regions = slices.DeleteFunc(slices.Clone(u.Regions), func(id string) bool {
			return slices.Contains(regionIDs, id)
		})
		r.s.users[id] = u
	}
	return nil
}

type memRegionRepo struct{ s *store }

func (r *memRegionRepo) CreateRegion(_ context.Context, region *model.Region) (*model.Region, error) {
	if err := r.s.fail("CreateRegion"); err != nil {
		return nil, err
	}
	if region.ID == "" {
		region.ID = model.NewID()
	}
	region.CreatedAt = time.Now()
	region.UpdatedAt = region.CreatedAt
	r.s.regions[region.ID] = *region
	created := *region
	return &created, nil
}

func (r *memRegionRepo) GetRegion(_ context.Context, id string) (*model.Region, error) {
	region, ok := r.s.regions[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &region, nil
}

func (r *memRegionRepo) UpdateRegion(
	_ context.Context,
	id string,
	params repository.UpdateRegionParams,
) (*model.Region, error) {
	if err := r.s.fail("UpdateRegion"); err != nil {
		return nil, err
	}
	region, ok := r.s.regions[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	if params.Name != nil {
		region.Name = *params.Name
	}
	if params.Boundary != nil {
		region.Boundary = *params.Boundary
	}
	if params.User != nil {
		region.User = *params.User
	}
	r.s.regions[id] = region
	return &region, nil
}

func (r *memRegionRepo) DeleteRegion(_ context.Context, id string) (*model.Region, error) {
	region, ok := r.s.regions[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	delete(r.s.regions, id)
	return &region, nil
}

func (r *memRegionRepo) ListRegions(
	_ context.Context,
	params repository.FilterRegionsParams,
) ([]*model.Region, error) {
	ids := make([]string, 0, len(r.s.regions))
	for id := range r.s.regions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	regions := []*model.Region{}
	for i, id := range ids {
		if uint64(i) < params.Offset {
			continue
		}
		if params.Limit > 0 && uint64(len(regions)) == params.Limit {
			break
		}
		region := r.s.regions[id]
		regions = append(regions, &region)
	}
	return regions, nil
}

func (r *memRegionRepo) CountRegions(context.Context) (int64, error) {
	return int64(len(r.s.regions)), nil
}

func (r *memRegionRepo) CountRegionsByIDs(_ context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := r.s.regions[id]; ok {
			n++
		}
	}
	return n, nil
}

func (r *memRegionRepo) AssignOwner(_ context.Context, ids []string, userID string) error {
	if err := r.s.fail("AssignOwner"); err != nil {
		return err
	}
	for _, id := range ids {
		if region, ok := r.s.regions[id]; ok {
			region.User = userID
			r.s.regions[id] = region
		}
	}
	return nil
}

func (r *memRegionRepo) ClearOwner(_ context.Context, userID string, keep []string) error {
	if err := r.s.fail("ClearOwner"); err != nil {
		return err
	}
	for id, region := range r.s.regions {
		if region.User == userID && !slices.Contains(keep, id) {
			region.User = ""
			r.s.regions[id] = region
		}
	}
	return nil
}

// FindContaining matches on the bounding box of the outer ring.
func (r *memRegionRepo) FindContaining(_ context.Context, c geo.Coordinates) (*model.Region, error) {
	for _, region := range r.s.regions {
		ring := region.Boundary.Coordinates[0]
		minLng, maxLng, minLat, maxLat := ring[0][0], ring[0][0], ring[0][1], ring[0][1]
		for _, p := range ring {
			minLng, maxLng = min(minLng, p[0]), max(maxLng, p[0])
			minLat, maxLat = min(minLat, p[1]), max(maxLat, p[1])
		}
		if c.Lng >= minLng && c.Lng <= maxLng && c.Lat >= minLat && c.Lat <= maxLat {
			return &region, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

// FindNear treats every region as within range.
func (r *memRegionRepo) FindNear(
	_ context.Context,
	params repository.NearRegionsParams,
) ([]*model.NearbyRegion, error) {
	near := []*model.NearbyRegion{}
	for _, region := range r.s.regions {
		if params.ExcludeUser != "" && region.User == params.ExcludeUser {
			continue
		}
		nr := &model.NearbyRegion{Region: region}
		if owner, ok := r.s.users[region.User]; ok {
			nr.UserName = owner.Name
		}
		near = append(near, nr)
	}
	return near, nil
}

type fakeGeocoder struct {
	address     string
	coordinates geo.Coordinates
	err         error

	addressCalls     int
	coordinatesCalls int
}

func (g *fakeGeocoder) ResolveAddress(context.Context, geo.Coordinates) (string, error) {
	g.addressCalls++
	return g.address, g.err
}

func (g *fakeGeocoder) ResolveCoordinates(context.Context, string) (geo.Coordinates, error) {
	g.coordinatesCalls++
	return g.coordinates, g.err
}

type fixture struct {
	store    *store
	txn      *memTransactor
	geocoder *fakeGeocoder
	users    UserUsecase
	regions  RegionUsecase
}

func newFixture() *fixture {
	s := newStore()
	txn := &memTransactor{s: s}
	geocoder := &fakeGeocoder{
		address:     "Estrada do Gentio, Petrópolis",
		coordinates: geo.Coordinates{Lat: -22.45, Lng: -43.05},
	}
	userRepo := &memUserRepo{s: s}
	regionRepo := &memRegionRepo{s: s}

	return &fixture{
		store:    s,
		txn:      txn,
		geocoder: geocoder,
		users:    NewUserUsecase(txn, userRepo, regionRepo, NewGeocodeHook(geocoder), 100),
		regions:  NewRegionUsecase(txn, regionRepo, userRepo, 100),
	}
}

var testPolygon = geo.Polygon{
	Type: geo.TypePolygon,
	Coordinates: [][][]float64{{
		{-43.1, -22.5}, {-43.0, -22.5}, {-43.0, -22.4}, {-43.1, -22.4}, {-43.1, -22.5},
	}},
}

func (f *fixture) mustCreateUser(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), CreateUserParams{
		Name:    name,
		Email:   name + "@example.com",
		Address: "Rua " + name,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", name, err)
	}
	return u
}

func (f *fixture) mustCreateRegion(t *testing.T, name, owner string) *model.Region {
	t.Helper()
	r, err := f.regions.CreateRegion(context.Background(), CreateRegionParams{
		Name:     name,
		Boundary: testPolygon,
		User:     owner,
	})
	if err != nil {
		t.Fatalf("CreateRegion(%s): %v", name, err)
	}
	return r
}

// assertLinked checks that a region's owner and the owners' region lists
// agree in both directions.
func (f *fixture) assertLinked(t *testing.T) {
	t.Helper()
	for id, region := range f.store.regions {
		if region.User == "" {
			continue
		}
		owner, ok := f.store.users[region.User]
		if !ok {
			t.Fatalf("region %s points at missing user %s", id, region.User)
		}
		if !slices.Contains(owner.Regions, id) {
			t.Fatalf("region %s owned by %s but missing from %v", id, owner.ID, owner.Regions)
		}
	}
	for id, user := range f.store.users {
		for _, regionID := range user.Regions {
			region, ok := f.store.regions[regionID]
			if !ok {
				t.Fatalf("user %s lists missing region %s", id, regionID)
			}
			if region.User != id {
				t.Fatalf("user %s lists region %s owned by %q", id, regionID, region.User)
			}
		}
	}
}

// interleavedRegionRepo runs a concurrent write once, after the wrapped read
// has already been taken.
type interleavedRegionRepo struct {
	*memRegionRepo
	afterGetRegion        func()
	afterCountRegionsByID func()
}

func (r *interleavedRegionRepo) GetRegion(ctx context.Context, id string) (*model.Region, error) {
	region, err := r.memRegionRepo.GetRegion(ctx, id)
	if fn := r.afterGetRegion; fn != nil {
		r.afterGetRegion = nil
		fn()
	}
	return region, err
}

func (r *interleavedRegionRepo) CountRegionsByIDs(ctx context.Context, ids []string) (int64, error) {
	n, err := r.memRegionRepo.CountRegionsByIDs(ctx, ids)
	if fn := r.afterCountRegionsByID; fn != nil {
		r.afterCountRegionsByID = nil
		fn()
	}
	return n, err
}
