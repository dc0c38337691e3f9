package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"klient-plikow/internal/apiclient"
	"klient-plikow/internal/models"
	"klient-plikow/internal/quota"
)

// UserUpdate is the admin-editable field set. MaxStorage travels in bytes;
// use SetQuotaGiB for the GiB-denominated input.
type UserUpdate struct {
	IsActive   *bool   `json:"is_active,omitempty"`
	Password   *string `json:"password,omitempty"`
	MaxStorage *int64  `json:"max_storage,omitempty"`
}

// SetQuotaGiB converts a GiB quota input to bytes, rounded to the nearest
// byte, before transmission.
func (u *UserUpdate) SetQuotaGiB(gib float64) {
	b := quota.GiBToBytes(gib)
	u.MaxStorage = &b
}

// CreateUserParams is an admin-provisioned account.
type CreateUserParams struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Users is the admin-only cache of user accounts; same contract as Files.
type Users struct {
	tracker
	api   *apiclient.Client
	log   *zap.Logger
	items []models.User
}

func NewUsers(api *apiclient.Client, log *zap.Logger) *Users {
	return &Users{api: api, log: log}
}

func (u *Users) List(ctx context.Context) ([]models.User, error) {
	gen := u.begin(false)

	var items []models.User
	err := u.api.Get(ctx, "/auth/users/", nil, &items)
	settleErr := u.settle(ctx, gen, false, err, func() {
		u.items = items
	})
	if settleErr != nil {
		return nil, settleErr
	}
	return items, nil
}

func (u *Users) Update(ctx context.Context, id int64, fields UserUpdate) (*models.User, error) {
	gen := u.begin(true)

	var updated models.User
	err := u.api.Patch(ctx, fmt.Sprintf("/auth/users/%d/", id), fields, &updated)
	settleErr := u.settle(ctx, gen, true, err, func() {
		for i := range u.items {
			if u.items[i].ID == updated.ID {
				u.items[i] = updated
				break
			}
		}
	})
	if settleErr != nil {
		return nil, settleErr
	}
	return &updated, nil
}

func (u *Users) Remove(ctx context.Context, id int64) error {
	gen := u.begin(true)

	err := u.api.Delete(ctx, fmt.Sprintf("/auth/users/%d/", id))
	return u.settle(ctx, gen, true, err, func() {
		kept := u.items[:0]
		for _, item := range u.items {
			if item.ID != id {
				kept = append(kept, item)
			}
		}
		u.items = kept
	})
}

func (u *Users) Create(ctx context.Context, params CreateUserParams) (*models.User, error) {
	gen := u.begin(true)

	var created models.User
	err := u.api.Post(ctx, "/auth/admin/create/", params, &created)
	settleErr := u.settle(ctx, gen, true, err, func() {
		u.items = append(u.items, created)
	})
	if settleErr != nil {
		return nil, settleErr
	}
	return &created, nil
}

func (u *Users) Items() []models.User {
	u.mu.Lock()
	defer u.mu.Unlock()
	items := make([]models.User, len(u.items))
	copy(items, u.items)
	return items
}
