package service

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	authModel "campusmap_backend/internals/features/users/auth/model"
	authRepo "campusmap_backend/internals/features/users/auth/repository"
	helper "campusmap_backend/internals/helpers"
	"campusmap_backend/internals/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

const minPasswordLength = 8

// Claims carried by an admin access token.
type Claims struct {
	UserID   uint   `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

type AuthService struct {
	DB     *gorm.DB
	Secret []byte
	TTL    time.Duration
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{DB: db, Secret: []byte(secret), TTL: ttl, now: time.Now}
}

/* ==========================
   Passwords
========================== */

func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", helper.Invalid("password must be at least %d characters", minPasswordLength)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(b), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

/* ==========================
   Tokens
========================== */

// IssueToken signs an HS256 access token for the admin.
func (s *AuthService) IssueToken(a *authModel.AdminModel) (string, time.Time, error) {
	if len(s.Secret) == 0 {
		return "", time.Time{}, errors.New("JWT_SECRET is not set")
	}
	now := s.now().UTC()
	exp := now.Add(s.TTL)
	claims := Claims{
		UserID:   a.ID,
		UserName: a.Name,
		Email:    a.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return tok, exp, nil
}

// ParseToken verifies signature and expiry. It does not consult the blacklist.
func (s *AuthService) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.Secret, nil
	})
	if err != nil || !tok.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate parses the token and rejects blacklisted ones.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.ParseToken(raw)
	if err != nil {
		return nil, err
	}
	revoked, err := authRepo.IsBlacklisted(ctx, s.DB, raw)
	if err != nil {
		return nil, helper.Storage(err, "check token blacklist")
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

/* ==========================
   Login / Logout
========================== */

type LoginResult struct {
	Token     string                `json:"access_token"`
	TokenType string                `json:"token_type"`
	ExpiresAt time.Time             `json:"expires_at"`
	Admin     *authModel.AdminModel `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	a, err := authRepo.FindAdminByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, helper.Storage(err, "find admin")
	}
	if !CheckPassword(a.Password, password) {
		return nil, ErrInvalidCredentials
	}
	tok, exp, err := s.IssueToken(a)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: tok, TokenType: "Bearer", ExpiresAt: exp, Admin: a}, nil
}

// Logout blacklists the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	exp := s.now().Add(s.TTL)
	if claims, err := s.ParseToken(raw); err == nil && claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := authRepo.BlacklistToken(ctx, s.DB, raw, exp); err != nil {
		return helper.Storage(err, "blacklist token")
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, id uint) (*authModel.AdminModel, error) {
	a, err := authRepo.FindAdminByID(ctx, s.DB, id)
	if err != nil {
		return nil, helper.Storage(err, "load admin")
	}
	return a, nil
}

/* ==========================
   Admin management
========================== */

// CreateAdmin creates an admin, or resets the password of an existing one
// with the same email.
func (s *AuthService) CreateAdmin(ctx context.Context, name, email, password string) (*authModel.AdminModel, bool, error) {
	name, email = strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, false, helper.Invalid("name and email are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, false, err
	}

	existing, err := authRepo.FindAdminByEmail(ctx, s.DB, email)
	switch {
	case err == nil:
		if err := authRepo.UpdateAdminPassword(ctx, s.DB, existing.ID, hash); err != nil {
			return nil, false, helper.Storage(err, "update admin password")
		}
		logger.Audit().WithField("admin_id", existing.ID).Info("admin password reset")
		return existing, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, helper.Storage(err, "find admin")
	}

	a := &authModel.AdminModel{Name: name, Email: email, Password: hash}
	if err := authRepo.CreateAdmin(ctx, s.DB, a); err != nil {
		if helper.IsUniqueViolation(err) {
			return nil, false, helper.Conflict("admin %s already exists", email)
		}
		return nil, false, helper.Storage(err, "create admin")
	}
	logger.Audit().WithField("admin_id", a.ID).Info("admin created")
	return a, true, nil
}
