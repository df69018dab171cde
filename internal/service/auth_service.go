package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"itemsim/internal/config"
	"itemsim/internal/model"
	"itemsim/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 6
	maxUsernameLength = 64
	maxPasswordBytes  = 72 // bcrypt ignores anything past this
	bearerPrefix      = "Bearer"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9]+$`)

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

type AuthService struct {
	userRepo   *repository.UserRepository
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	admins     map[string]struct{}
	now        func() time.Time
	log        *zap.Logger
}

func NewAuthService(db *gorm.DB, cfg *config.Config, log *zap.Logger) *AuthService {
	admins := make(map[string]struct{}, len(cfg.Auth.CatalogAdmins))
	for _, name := range cfg.Auth.CatalogAdmins {
		admins[name] = struct{}{}
	}

	return &AuthService{
		userRepo:   repository.NewUserRepository(db),
		secret:     []byte(cfg.Auth.JWTSecret),
		tokenTTL:   cfg.Auth.TokenTTL,
		bcryptCost: cfg.Auth.BcryptCost,
		admins:     admins,
		now:        time.Now,
		log:        log,
	}
}

// Register creates a user after validating the credentials. Only the
// bcrypt hash of the password is stored.
func (s *AuthService) Register(ctx context.Context, username, password, confirmPassword string) (*model.User, error) {
	if username == "" || password == "" || confirmPassword == "" {
		return nil, ValidationError("Username, password and password confirmation are required")
	}
	if !usernamePattern.MatchString(username) {
		return nil, ValidationError("Username must contain only lowercase letters and numbers")
	}
	if len(username) > maxUsernameLength {
		return nil, ValidationError("Username must be at most %d characters long", maxUsernameLength)
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, ValidationError("Password must be at least %d characters long", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return nil, ValidationError("Password must be at most %d bytes long", maxPasswordBytes)
	}
	if password != confirmPassword {
		return nil, ValidationError("Password and password confirmation do not match")
	}

	_, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return nil, ConflictError("Username already taken")
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ConflictError("Username already taken")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", username))
	return user, nil
}

// Login checks the password and returns a signed token for the user.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", NotFoundError("User not found")
		}
		return "", fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ForbiddenError("Invalid password")
	}

	return s.IssueToken(user.ID)
}

// IssueToken signs an HS256 token for userID expiring after the configured TTL.
func (s *AuthService) IssueToken(userID int64) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify extracts the user id from an Authorization header value.
// A missing or malformed header is Unauthorized; a token that does not
// verify or has expired is Forbidden.
func (s *AuthService) Verify(authorization string) (int64, error) {
	if strings.TrimSpace(authorization) == "" {
		return 0, UnauthorizedError("Token not found")
	}

	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || parts[0] != bearerPrefix || strings.TrimSpace(parts[1]) == "" {
		return 0, UnauthorizedError("Invalid token struct")
	}

	return s.ParseToken(strings.TrimSpace(parts[1]))
}

// ParseToken validates a raw token string.
func (s *AuthService) ParseToken(tokenString string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return 0, ForbiddenError("Invalid token")
	}
	if claims.UserID <= 0 {
		return 0, ForbiddenError("Invalid token")
	}
	return claims.UserID, nil
}

// CanAdministerCatalog reports whether the user may create or edit items.
// With no admins configured every authenticated user may.
func (s *AuthService) CanAdministerCatalog(ctx context.Context, userID int64) (bool, error) {
	if len(s.admins) == 0 {
		return true, nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("look up user: %w", err)
	}

	_, ok := s.admins[user.Username]
	return ok, nil
}
