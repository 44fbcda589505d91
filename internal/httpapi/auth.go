package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/logger"
	"gestorbrecho/backend/internal/service"
	"gestorbrecho/backend/internal/store"
	"gestorbrecho/backend/internal/xid"
)

const tokenIssuer = "gestorbrecho"

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context, ownerID string) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, userID string, password string) error
}

// TenantSeeder prepares the defaults of a freshly registered owner.
type TenantSeeder func(ctx context.Context, ownerID string) error

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    UserStore
	seed     TenantSeeder
	log      *logger.Logger
	now      func() time.Time
}

type brechoClaims struct {
	jwtlib.RegisteredClaims
	OwnerID  string `json:"owner_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, users UserStore, seed TenantSeeder) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
		seed:     seed,
		log:      logger.Default().WithComponent("auth"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new owner together with its first admin account.
func (a *AuthManager) Register(ctx context.Context, req domain.RegisterRequest) (domain.LoginResponse, error) {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := service.Validate(req); err != nil {
		return domain.LoginResponse{}, err
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.LoginResponse{}, apperror.NewInternal(err)
	}

	id := xid.New()
	user := domain.UserAccount{
		ID:        id,
		OwnerID:   id,
		Username:  req.Username,
		Password:  hash,
		Role:      domain.RoleAdmin,
		Active:    true,
		CreatedAt: a.now(),
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.LoginResponse{}, apperror.NewConflict("username already exists")
		}
		return domain.LoginResponse{}, apperror.NewInternal(err)
	}
	if a.seed != nil {
		if err := a.seed(ctx, user.OwnerID); err != nil {
			return domain.LoginResponse{}, apperror.NewInternal(err)
		}
	}
	a.log.Infow("owner registered", "owner_id", user.OwnerID, "username", user.Username)
	return a.issue(user)
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	invalid := apperror.NewUnauthorized("invalid credentials")
	user, err := a.users.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, invalid
	}
	if err != nil {
		return domain.LoginResponse{}, apperror.NewInternal(err)
	}

	if !isPasswordHash(user.Password) {
		// accounts imported with a plain password are upgraded on first login
		if user.Password == "" || user.Password != req.Password {
			return domain.LoginResponse{}, invalid
		}
		if hashed, err := hashPassword(req.Password); err == nil {
			if err := a.users.UpdateUserPassword(ctx, user.ID, hashed); err != nil {
				a.log.Warnw("password upgrade failed", "user_id", user.ID, "error", err)
			}
		}
	} else if !verifyPassword(user.Password, req.Password) {
		return domain.LoginResponse{}, invalid
	}
	if !user.Active {
		return domain.LoginResponse{}, apperror.NewForbidden("account is inactive")
	}
	return a.issue(*user)
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &brechoClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, apperror.NewUnauthorized("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.OwnerID == "" {
		return domain.Actor{}, apperror.NewUnauthorized("invalid token subject")
	}
	return domain.Actor{UserID: sub, OwnerID: claims.OwnerID, Username: claims.Username, Role: claims.Role}, nil
}

func (a *AuthManager) issue(user domain.UserAccount) (domain.LoginResponse, error) {
	expiresAt := a.now().Add(a.tokenTTL)
	claims := brechoClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		OwnerID:  user.OwnerID,
		Username: user.Username,
		Role:     user.Role,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, apperror.NewInternal(err)
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		OwnerID:     user.OwnerID,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// CreateStaff adds a staff account to the caller's owner. Admin only.
func (a *AuthManager) CreateStaff(ctx context.Context, req domain.StaffCreateRequest) (domain.UserAccount, error) {
	actor, ok := service.ActorFromContext(ctx)
	if !ok {
		return domain.UserAccount{}, apperror.NewUnauthorized("authentication required")
	}
	if actor.Role != domain.RoleAdmin {
		return domain.UserAccount{}, apperror.NewForbidden("admin role required")
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := service.Validate(req); err != nil {
		return domain.UserAccount{}, err
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserAccount{}, apperror.NewInternal(err)
	}

	user := domain.UserAccount{
		ID:        xid.New(),
		OwnerID:   actor.OwnerID,
		Username:  req.Username,
		Password:  hash,
		Role:      domain.RoleStaff,
		Active:    true,
		CreatedAt: a.now(),
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.UserAccount{}, apperror.NewConflict("username already exists")
		}
		return domain.UserAccount{}, apperror.NewInternal(err)
	}
	user.Password = ""
	return user, nil
}

func (a *AuthManager) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	actor, ok := service.ActorFromContext(ctx)
	if !ok {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	if actor.Role != domain.RoleAdmin {
		return nil, apperror.NewForbidden("admin role required")
	}
	users, err := a.users.ListUsers(ctx, actor.OwnerID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
