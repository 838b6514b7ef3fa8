package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/model"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/repository"
	"github.com/luizclaudiolc/ozmap/shared/geo"
)

// RegionUsecase defines the interface for region-related use cases.
type RegionUsecase interface {
	CreateRegion(ctx context.Context, params CreateRegionParams) (*model.Region, error)
	GetRegion(ctx context.Context, id string) (*model.Region, error)
	ListRegions(ctx context.Context, params ListParams) (*Page[*model.Region], error)
	UpdateRegion(ctx context.Context, id string, params UpdateRegionParams) (*model.Region, error)
	DeleteRegion(ctx context.Context, id string) error
	ContainsPoint(ctx context.Context, point geo.Coordinates) (*model.Region, error)
	NearPoint(ctx context.Context, params NearPointParams) ([]*model.NearbyRegion, error)
}

// CreateRegionParams defines the parameters for creating a region. User is
// optional.
type CreateRegionParams struct {
	Name     string
	Boundary geo.Polygon
	User     string
}

// UpdateRegionParams defines the optional parameters for updating a region.
// A User pointing to an empty string removes the owner.
type UpdateRegionParams struct {
	Name     *string
	Boundary *geo.Polygon
	User     *string
}

// NearPointParams defines a proximity search. Distance is in metres.
type NearPointParams struct {
	Point       geo.Coordinates
	Distance    float64
	ExcludeUser string
}

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrRegionNotFound = errors.New("region not found")
	ErrInvalidData    = errors.New("invalid data")
)

type regionUsecase struct {
	txn        repository.Transactor
	regionRepo repository.RegionRepository
	userRepo   repository.UserRepository
	maxLimit   int
}

func NewRegionUsecase(
	txn repository.Transactor,
	regionRepo repository.RegionRepository,
	userRepo repository.UserRepository,
	maxLimit int,
) RegionUsecase {
	return &regionUsecase{
		txn:        txn,
		regionRepo: regionRepo,
		userRepo:   userRepo,
		maxLimit:   maxLimit,
	}
}

func (u *regionUsecase) CreateRegion(ctx context.Context, params CreateRegionParams) (*model.Region, error) {
	region := &model.Region{
		ID:       model.NewID(),
		Name:     strings.TrimSpace(params.Name),
		Boundary: params.Boundary,
		User:     params.User,
	}

	if err := model.ValidateRegion(region); err != nil {
		return nil, err
	}

	if region.User != "" {
		if _, err := u.userRepo.GetUser(ctx, region.User); err != nil {
			return nil, userErr(err)
		}
	}

	var created *model.Region
	err := u.txn.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = u.regionRepo.CreateRegion(ctx, region)
		if err != nil {
			return err
		}

		if created.User == "" {
			return nil
		}

		return userErr(u.userRepo.AddRegion(ctx, created.User, created.ID))
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (u *regionUsecase) GetRegion(ctx context.Context, id string) (*model.Region, error) {
	region, err := u.regionRepo.GetRegion(ctx, id)
	if err != nil {
		return nil, regionErr(err)
	}

	return region, nil
}

func (u *regionUsecase) ListRegions(ctx context.Context, params ListParams) (*Page[*model.Region], error) {
	params, limit, offset, err := params.window(u.maxLimit)
	if err != nil {
		return nil, err
	}

	regions, err := u.regionRepo.ListRegions(ctx, repository.FilterRegionsParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	total, err := u.regionRepo.CountRegions(ctx)
	if err != nil {
		return nil, err
	}

	return &Page[*model.Region]{Rows: regions, Page: params.Page, Limit: params.Limit, Total: total}, nil
}

func (u *regionUsecase) UpdateRegion(
	ctx context.Context,
	id string,
	params UpdateRegionParams,
) (*model.Region, error) {
	update := repository.UpdateRegionParams{}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", model.ErrInvalidRegionData)
		}
		update.Name = &name
	}

	if params.Boundary != nil {
		if err := params.Boundary.Validate(); err != nil {
			return nil, err
		}
		update.Boundary = params.Boundary
	}

	var updated *model.Region
	err := u.txn.WithTransaction(ctx, func(ctx context.Context) error {
		// The owner decision must come from a read inside the transaction so a
		// concurrent move surfaces as a write conflict.
		current, err := u.regionRepo.GetRegion(ctx, id)
		if err != nil {
			return regionErr(err)
		}

		update := update
		if params.User != nil && *params.User != current.User {
			owner := *params.User
			if owner != "" {
				if _, err := u.userRepo.GetUser(ctx, owner); err != nil {
					return userErr(err)
				}
			}

			// Pull from every other user, not just current.User.
			if err := u.userRepo.PullRegions(ctx, []string{id}, owner); err != nil {
				return err
			}
			if owner != "" {
				if err := u.userRepo.AddRegion(ctx, owner, id); err != nil {
					return userErr(err)
				}
			}
			update.User = &owner
		}

		if update.Name == nil && update.Boundary == nil && update.User == nil {
			updated = current
			return nil
		}

		updated, err = u.regionRepo.UpdateRegion(ctx, id, update)
		return regionErr(err)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (u *regionUsecase) DeleteRegion(ctx context.Context, id string) error {
	return u.txn.WithTransaction(ctx, func(ctx context.Context) error {
		region, err := u.regionRepo.DeleteRegion(ctx, id)
		if err != nil {
			return regionErr(err)
		}

		if region.User == "" {
			return nil
		}

		return u.userRepo.RemoveRegion(ctx, region.User, region.ID)
	})
}

func (u *regionUsecase) ContainsPoint(ctx context.Context, point geo.Coordinates) (*model.Region, error) {
	if err := point.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	region, err := u.regionRepo.FindContaining(ctx, point)
	if err != nil {
		return nil, regionErr(err)
	}

	return region, nil
}

func (u *regionUsecase) NearPoint(ctx context.Context, params NearPointParams) ([]*model.NearbyRegion, error) {
	if err := params.Point.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	if math.IsNaN(params.Distance) || math.IsInf(params.Distance, 0) || params.Distance < 0 {
		return nil, fmt.Errorf("%w: distance must be a non-negative number", ErrInvalidData)
	}

	return u.regionRepo.FindNear(ctx, repository.NearRegionsParams{
		Point:       params.Point,
		Distance:    params.Distance,
		ExcludeUser: params.ExcludeUser,
	})
}

func userErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrUserNotFound
	}

	return err
}

func regionErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrRegionNotFound
	}

	return err
}
