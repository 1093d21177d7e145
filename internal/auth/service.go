package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookswap/bookswap-backend/internal/users"
	pkgAuth "github.com/bookswap/bookswap-backend/pkg/auth"
	"github.com/bookswap/bookswap-backend/pkg/config"
	"github.com/bookswap/bookswap-backend/pkg/db"
	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

const (
	invalidCredentialsMessage = "Invalid credentials"
	duplicateUserMessage      = "User with this email or username already exists"
	userNotFoundMessage       = "User not found"
	tooManyAttemptsMessage    = "Too many attempts. Please try again later."
)

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) error
}

type sessionManager interface {
	Create(ctx context.Context, userID uuid.UUID, role enums.UserRole) (string, error)
	Revoke(ctx context.Context, sessionID string) error
	TTL() time.Duration
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Hasher         passwordHasher
	Limiter        rateLimiter
	JWTConfig      config.JWTConfig
	AppConfig      config.AppConfig
	RateLimit      config.RateLimitConfig
	Logger         *logger.Logger
}

// Service registers users and opens and closes their sessions.
type Service struct {
	users    userRepository
	sessions sessionManager
	hasher   passwordHasher
	limiter  rateLimiter
	jwtCfg   config.JWTConfig
	appCfg   config.AppConfig
	limits   config.RateLimitConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs an auth service. Limiter is optional.
func NewService(params ServiceParams) (*Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		users:    params.UserRepo,
		sessions: params.SessionManager,
		hasher:   params.Hasher,
		limiter:  params.Limiter,
		jwtCfg:   params.JWTConfig,
		appCfg:   params.AppConfig,
		limits:   params.RateLimit,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	if email == "" || username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and email are required")
	}

	if err := s.allow(ctx, "register:email:"+email, s.limits.RegisterEmailLimit, s.limits.RegisterWindow); err != nil {
		return nil, err
	}
	if err := s.allow(ctx, "register:ip:"+req.ClientIP, s.limits.RegisterIPLimit, s.limits.RegisterWindow); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing user")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, duplicateUserMessage)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	role := enums.UserRoleUser
	if s.appCfg.IsAdminEmail(email) {
		role = enums.UserRoleAdmin
	}

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		// lost a race with a concurrent sign-up
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, duplicateUserMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	if role == enums.UserRoleAdmin {
		s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "bootstrap admin registered")
	}
	return s.openSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if err := s.allow(ctx, "login:email:"+email, s.limits.LoginEmailLimit, s.limits.LoginWindow); err != nil {
		return nil, err
	}
	if err := s.allow(ctx, "login:ip:"+req.ClientIP, s.limits.LoginIPLimit, s.limits.LoginWindow); err != nil {
		return nil, err
	}

	user, err := s.authenticate(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	// accounts that registered before their email joined the admin list
	if user.Role != enums.UserRoleAdmin && s.appCfg.IsAdminEmail(email) {
		if err := s.users.UpdateRole(ctx, user.ID, enums.UserRoleAdmin); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promote admin")
		}
		user.Role = enums.UserRoleAdmin
		s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "bootstrap admin promoted")
	}

	return s.openSession(ctx, user)
}

// Logout revokes the session. Unknown or empty sessions are ignored.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, userNotFoundMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return users.FromModel(user), nil
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		if hash, err := s.hasher.Hash(password); err == nil {
			if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "password rehash not persisted")
			}
		}
	}
	return user, nil
}

func (s *Service) openSession(ctx context.Context, user *models.User) (*Session, error) {
	now := s.now().UTC()
	sessionID, err := s.sessions.Create(ctx, user.ID, user.Role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session")
	}
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID:    user.ID,
		Role:      user.Role,
		SessionID: sessionID,
	})
	if err != nil {
		_ = s.sessions.Revoke(ctx, sessionID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &Session{
		User:      users.FromModel(user),
		Token:     token,
		SessionID: sessionID,
		ExpiresAt: now.Add(s.sessions.TTL()),
	}, nil
}

// allow applies a fixed-window limit. Limiter outages fail open so a Redis
// blip does not lock every user out.
func (s *Service) allow(ctx context.Context, scope string, limit int, window time.Duration) error {
	if s.limiter == nil || limit <= 0 || window <= 0 {
		return nil
	}
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "auth:"+scope, int64(limit), window)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "auth rate limiter unavailable")
		return nil
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, tooManyAttemptsMessage)
	}
	return nil
}
