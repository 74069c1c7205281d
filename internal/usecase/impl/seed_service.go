package impl

import (
	"context"
	"log/slog"

	"meter/config"
	"meter/internal/domain/entity"
	"meter/internal/domain/repository"
	"meter/internal/domain/service"
	"meter/internal/errors"
)

// SeedResult reports what SeedDemoAccount did.
type SeedResult struct {
	User    *entity.User
	Created bool
}

// SeedDemoAccount creates the configured organization and user unless a user
// with the seed email already exists. Organization and user are created in
// one transaction.
func SeedDemoAccount(
	ctx context.Context,
	txManager repository.TransactionManager,
	hasher service.PasswordHasher,
	seed config.SeedConfig,
	logger *slog.Logger,
) (*SeedResult, error) {
	email := normalizeEmail(seed.Email)
	role, ok := entity.ParseRole(seed.Role)
	if !ok {
		return nil, errors.Errorf("invalid seed role %q", seed.Role)
	}

	passwordHash, err := hasher.Hash(seed.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash seed password")
	}

	var result SeedResult
	err = txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		existing, err := repoFactory.UserRepo().FindByEmail(ctx, email)
		if err == nil {
			result.User = existing

			return nil
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return errors.Wrap(err, "find seed user")
		}

		org := &entity.Organization{Name: seed.OrgName}
		if err := repoFactory.OrganizationRepo().Create(ctx, org); err != nil {
			return errors.Wrap(err, "create seed organization")
		}

		user := &entity.User{
			OrganizationID: org.ID,
			Email:          email,
			PasswordHash:   passwordHash,
			Role:           role,
		}
		if err := repoFactory.UserRepo().Create(ctx, user); err != nil {
			return errors.Wrap(err, "create seed user")
		}
		result.User = user
		result.Created = true

		return nil
	})
	if errors.Is(err, repository.ErrUserAlreadyExists) {
		// A concurrent seed won the unique email; the account exists either way.
		logger.Info("Seed user already exists", slog.String("email", email))

		return &SeedResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	if result.Created {
		logger.Info("Seed complete",
			slog.String("organization", seed.OrgName),
			slog.String("organization_id", result.User.OrganizationID.String()),
			slog.String("email", email),
		)
	} else {
		logger.Info("Seed user already exists", slog.String("email", email))
	}

	return &result, nil
}
