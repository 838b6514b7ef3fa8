package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/model"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/repository"
	"github.com/luizclaudiolc/ozmap/shared/geo"
)

// UserUsecase defines the interface for user-related use cases.
type UserUsecase interface {
	CreateUser(ctx context.Context, params CreateUserParams) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, params ListParams) (*Page[*model.User], error)
	UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// CreateUserParams defines the parameters for creating a user. Exactly one of
// Address and Coordinates must be set; a nil Regions leaves ownership alone.
type CreateUserParams struct {
	Name        string
	Email       string
	Address     string
	Coordinates *geo.Coordinates
	Regions     []string
}

// UpdateUserParams defines the optional parameters for updating a user.
// Regions, when set, replaces the user's regions wholesale.
type UpdateUserParams struct {
	Name        *string
	Email       *string
	Address     *string
	Coordinates *geo.Coordinates
	Regions     *[]string
}

type userUsecase struct {
	txn        repository.Transactor
	userRepo   repository.UserRepository
	regionRepo repository.RegionRepository
	hook       *GeocodeHook
	maxLimit   int
}

func NewUserUsecase(
	txn repository.Transactor,
	userRepo repository.UserRepository,
	regionRepo repository.RegionRepository,
	hook *GeocodeHook,
	maxLimit int,
) UserUsecase {
	return &userUsecase{
		txn:        txn,
		userRepo:   userRepo,
		regionRepo: regionRepo,
		hook:       hook,
		maxLimit:   maxLimit,
	}
}

func (u *userUsecase) CreateUser(ctx context.Context, params CreateUserParams) (*model.User, error) {
	user := &model.User{
		ID:      model.NewID(),
		Name:    strings.TrimSpace(params.Name),
		Email:   strings.TrimSpace(params.Email),
		Address: strings.TrimSpace(params.Address),
		Regions: []string{},
	}
	if params.Coordinates != nil {
		user.Coordinates = geo.NewPoint(*params.Coordinates)
	}

	if err := model.ValidateNewUser(user); err != nil {
		return nil, err
	}

	var regions []string
	if params.Regions != nil {
		// Fail fast before geocoding; setRegions checks again in the transaction.
		regions = uniqueIDs(params.Regions)
		if err := u.checkRegionsExist(ctx, regions); err != nil {
			return nil, err
		}
	}

	changed := model.UserName | model.UserEmail
	if user.Coordinates != nil {
		changed |= model.UserCoordinates
	} else {
		changed |= model.UserAddress
	}
	if err := u.hook.BeforeSave(ctx, user, changed); err != nil {
		return nil, err
	}

	var created *model.User
	err := u.txn.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = u.userRepo.CreateUser(ctx, user)
		if err != nil {
			return err
		}

		if params.Regions == nil {
			return nil
		}

		created, err = u.setRegions(ctx, created.ID, regions, repository.UpdateUserParams{})
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (u *userUsecase) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := u.userRepo.GetUser(ctx, id)
	if err != nil {
		return nil, userErr(err)
	}

	return user, nil
}

func (u *userUsecase) ListUsers(ctx context.Context, params ListParams) (*Page[*model.User], error) {
	params, limit, offset, err := params.window(u.maxLimit)
	if err != nil {
		return nil, err
	}

	users, err := u.userRepo.ListUsers(ctx, repository.FilterUsersParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	total, err := u.userRepo.CountUsers(ctx)
	if err != nil {
		return nil, err
	}

	return &Page[*model.User]{Rows: users, Page: params.Page, Limit: params.Limit, Total: total}, nil
}

func (u *userUsecase) UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*model.User, error) {
	if params.Address != nil && params.Coordinates != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidUserData, model.ErrAddressOrCoordinatesConflict)
	}

	user, err := u.userRepo.GetUser(ctx, id)
	if err != nil {
		return nil, userErr(err)
	}

	var changed model.UserFields
	update := repository.UpdateUserParams{}

	if params.Name != nil {
		user.Name = strings.TrimSpace(*params.Name)
		if user.Name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", model.ErrInvalidUserData)
		}
		changed |= model.UserName
		update.Name = &user.Name
	}

	if params.Email != nil {
		user.Email = strings.TrimSpace(*params.Email)
		if user.Email == "" {
			return nil, fmt.Errorf("%w: email must not be empty", model.ErrInvalidUserData)
		}
		changed |= model.UserEmail
		update.Email = &user.Email
	}

	if params.Address != nil {
		user.Address = strings.TrimSpace(*params.Address)
		if user.Address == "" {
			return nil, fmt.Errorf("%w: address must not be empty", model.ErrInvalidUserData)
		}
		changed |= model.UserAddress
	}

	if params.Coordinates != nil {
		user.Coordinates = geo.NewPoint(*params.Coordinates)
		if err := model.ValidatePoint(user.Coordinates); err != nil {
			return nil, err
		}
		changed |= model.UserCoordinates
	}

	if changed.Has(model.UserAddress) || changed.Has(model.UserCoordinates) {
		if err := u.hook.BeforeSave(ctx, user, changed); err != nil {
			return nil, err
		}
		update.Address = &user.Address
		update.Coordinates = user.Coordinates
	}

	var regions []string
	if params.Regions != nil {
		regions = uniqueIDs(*params.Regions)
		if err := u.checkRegionsExist(ctx, regions); err != nil {
			return nil, err
		}
	}

	if changed == 0 && params.Regions == nil {
		return user, nil
	}

	var updated *model.User
	err = u.txn.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if params.Regions != nil {
			updated, err = u.setRegions(ctx, id, regions, update)
			return err
		}

		updated, err = u.userRepo.UpdateUser(ctx, id, update)
		return userErr(err)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (u *userUsecase) DeleteUser(ctx context.Context, id string) error {
	return u.txn.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := u.userRepo.DeleteUser(ctx, id); err != nil {
			return userErr(err)
		}

		return u.regionRepo.ClearOwner(ctx, id, nil)
	})
}

// setRegions makes regions the exact set owned by userID, moving each listed
// region away from its previous owner and releasing the regions the user no
// longer lists. It must run inside a transaction.
func (u *userUsecase) setRegions(
	ctx context.Context,
	userID string,
	regions []string,
	update repository.UpdateUserParams,
) (*model.User, error) {
	if err := u.checkRegionsExist(ctx, regions); err != nil {
		return nil, err
	}
	if err := u.regionRepo.ClearOwner(ctx, userID, regions); err != nil {
		return nil, err
	}
	if err := u.userRepo.PullRegions(ctx, regions, userID); err != nil {
		return nil, err
	}
	if err := u.regionRepo.AssignOwner(ctx, regions, userID); err != nil {
		return nil, err
	}

	update.Regions = &regions
	user, err := u.userRepo.UpdateUser(ctx, userID, update)
	if err != nil {
		return nil, userErr(err)
	}

	return user, nil
}

func (u *userUsecase) checkRegionsExist(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	n, err := u.regionRepo.CountRegionsByIDs(ctx, ids)
	if err != nil {
		return err
	}

	if n != int64(len(ids)) {
		return fmt.Errorf("%w: %d of %d regions do not exist", ErrInvalidData, int64(len(ids))-n, len(ids))
	}

	return nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	return unique
}
