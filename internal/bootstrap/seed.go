// Package bootstrap seeds development users so every portal has a working
// login out of the box.
package bootstrap

import (
	"github.com/netvista/portal-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type seedUser struct {
	email         string
	name          string
	role          users.Role
	permissions   []string
	tenantID      string
	accountNumber string
	password      string
}

var seedUsers = []seedUser{
	{
		email:       "admin@example.com",
		name:        "Ada Admin",
		role:        users.RoleAdmin,
		permissions: []string{"users:manage", "portals:manage", "sessions:revoke"},
		tenantID:    "tenant-1",
		password:    "AdminPass123",
	},
	{
		email:         "customer@example.com",
		name:          "Pat Customer",
		role:          users.RoleCustomer,
		permissions:   []string{"billing:read", "tickets:create"},
		tenantID:      "tenant-1",
		accountNumber: "ACC-100200",
		password:      "Password123",
	},
	{
		email:       "reseller@example.com",
		name:        "Rae Reseller",
		role:        users.RoleReseller,
		permissions: []string{"accounts:read", "orders:create"},
		tenantID:    "tenant-2",
		password:    "ResellerPass123",
	},
	{
		email:       "tech@example.com",
		name:        "Terry Technician",
		role:        users.RoleTechnician,
		permissions: []string{"workorders:read", "workorders:update"},
		tenantID:    "tenant-1",
		password:    "TechPass123",
	},
	{
		email:       "manager@example.com",
		name:        "Mel Manager",
		role:        users.RoleManager,
		permissions: []string{"reports:read", "staff:manage"},
		tenantID:    "tenant-1",
		password:    "ManagerPass123",
	},
}

// SeedUsers inserts the development users, skipping any email that already
// exists so restarts do not reset passwords.
func SeedUsers(repo users.UserRepo) error {
	for _, seed := range seedUsers {
		if _, err := repo.GetByEmail(seed.email); err == nil {
			continue
		}

		hash, err := users.HashPassword(seed.password)
		if err != nil {
			return errors.Wrapf(err, "[bootstrap.SeedUsers] hash password for %s", seed.email)
		}
		if err := repo.Upsert(&users.User{
			Email:         seed.email,
			Name:          seed.name,
			Role:          seed.role,
			Permissions:   seed.permissions,
			TenantID:      seed.tenantID,
			AccountNumber: seed.accountNumber,
			PasswordHash:  hash,
			Active:        true,
		}); err != nil {
			return errors.Wrapf(err, "[bootstrap.SeedUsers] upsert %s", seed.email)
		}
		log.Info().Str("email", seed.email).Msg("seeded user")
	}
	return nil
}
