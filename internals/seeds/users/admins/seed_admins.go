package admins

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	authService "campusmap_backend/internals/features/users/auth/service"
	"campusmap_backend/internals/logger"
)

type AdminSeed struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SeedAdminsFromJSON creates the admins listed in filePath. An existing
// email gets its password reset.
func SeedAdminsFromJSON(ctx context.Context, svc *authService.AuthService, filePath string) error {
	log := logger.App()
	log.Infof("📥 reading admins from %s", filePath)

	file, err := os.ReadFile(filePath)
	if err != nil {
		return errors.Wrap(err, "read admin seed")
	}
	var inputs []AdminSeed
	if err := json.Unmarshal(file, &inputs); err != nil {
		return errors.Wrap(err, "decode admin seed")
	}

	for _, in := range inputs {
		a, created, err := svc.CreateAdmin(ctx, in.Name, in.Email, in.Password)
		if err != nil {
			log.WithError(err).Warnf("❌ admin %s skipped", in.Email)
			continue
		}
		if created {
			log.Infof("✅ admin %s created (id %d)", a.Email, a.ID)
		} else {
			log.Infof("ℹ️ admin %s exists, password reset", a.Email)
		}
	}
	return nil
}
