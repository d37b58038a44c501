package seeds

import (
	"context"
	"path/filepath"

	"gorm.io/gorm"

	authService "campusmap_backend/internals/features/users/auth/service"
	"campusmap_backend/internals/seeds/campus"
	"campusmap_backend/internals/seeds/users/admins"
)

// RunAllSeeds loads admins.json and campus.json from dir.
func RunAllSeeds(ctx context.Context, db *gorm.DB, auth *authService.AuthService, dir string) error {
	//* Admins
	if err := admins.SeedAdminsFromJSON(ctx, auth, filepath.Join(dir, "admins.json")); err != nil {
		return err
	}

	//* Campus: maps, buildings, employees, rooms
	return campus.SeedCampusFromJSON(ctx, db, filepath.Join(dir, "campus.json"))
}
