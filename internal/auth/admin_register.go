package auth

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/printz/fulfillment-backend/internal/users"
	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/db/models"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
	"github.com/printz/fulfillment-backend/pkg/security"
)

// AdminRegisterService creates staff and admin accounts from the back office.
type AdminRegisterService interface {
	Register(ctx context.Context, req AdminRegisterRequest) (*users.UserDTO, error)
}

// AdminRegisterServiceParams names the dependencies for the admin register flow.
type AdminRegisterServiceParams struct {
	TxRunner       txRunner
	PasswordConfig config.PasswordConfig
	RepoFactory    func(tx *gorm.DB) registerUserRepository
}

type adminRegisterService struct {
	tx          txRunner
	passwordCfg config.PasswordConfig
	repoFactory func(tx *gorm.DB) registerUserRepository
}

// NewAdminRegisterService builds the back-office registration service.
func NewAdminRegisterService(params AdminRegisterServiceParams) (AdminRegisterService, error) {
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	factory := params.RepoFactory
	if factory == nil {
		factory = func(tx *gorm.DB) registerUserRepository { return users.NewRepository(tx) }
	}
	return &adminRegisterService{
		tx:          params.TxRunner,
		passwordCfg: params.PasswordConfig,
		repoFactory: factory,
	}, nil
}

func (s *adminRegisterService) Register(ctx context.Context, req AdminRegisterRequest) (*users.UserDTO, error) {
	email, err := normalizeCredentials(req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !req.Role.IsBackOffice() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be admin or staff")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repoFactory(tx)
		if err := ensureEmailAvailable(ctx, repo, email); err != nil {
			return err
		}
		user, err := repo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			Name:         name,
			Phone:        req.Phone,
			Role:         req.Role,
			IsVerified:   true,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users.FromModel(created), nil
}
