package devapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"savings-client/internal/dto"
	"savings-client/internal/entity"
	"savings-client/internal/mapper"
	"savings-client/internal/pkg/logger"
	"savings-client/internal/repository/contract"
	"savings-client/pkg/events"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	AccessTokenTTL  = 24 * time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("email or username already registered")
	ErrInvalidInput       = errors.New("invalid input")
)

// EventPublisher receives domain events such as USER_REGISTERED. It is either
// the NATS publisher or the notification service itself.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, userAgent string) (*dto.LoginResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Check(ctx context.Context, userID uuid.UUID) *dto.AuthCheckResponse
}

type SeedUser struct {
	Email    string
	Username string
	FullName string
	Password string
	Role     entity.UserRole
}

// DemoUsers are created on dev API startup.
var DemoUsers = []SeedUser{
	{Email: "saver@example.com", Username: "saver", FullName: "Demo Saver", Password: "hunter22", Role: entity.UserRoleUser},
	{Email: "admin@example.com", Username: "admin", FullName: "Demo Admin", Password: "admin1234", Role: entity.UserRoleAdmin},
}

type AuthService struct {
	users         contract.UserRepository
	refreshTokens contract.RefreshTokenRepository
	publisher     EventPublisher
	secret        []byte
	mapper        *mapper.UserMapper
	validate      *validator.Validate
	logger        logger.ILogger
	now           func() time.Time
}

func NewAuthService(users contract.UserRepository, refreshTokens contract.RefreshTokenRepository, publisher EventPublisher, jwtSecret string, log logger.ILogger) *AuthService {
	return &AuthService{
		users:         users,
		refreshTokens: refreshTokens,
		publisher:     publisher,
		secret:        []byte(jwtSecret),
		mapper:        mapper.NewUserMapper(),
		validate:      validator.New(),
		logger:        log,
		now:           time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := s.createUser(ctx, SeedUser{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
		Password: req.Password,
		Role:     entity.UserRoleUser,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "USER_REGISTERED", map[string]interface{}{
		"user_id":   user.Id.String(),
		"full_name": user.FullName,
	})

	return &dto.RegisterResponse{User: *s.mapper.ToProfile(user)}, nil
}

func (s *AuthService) createUser(ctx context.Context, in SeedUser) (*entity.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &entity.User{
		Id:           uuid.New(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: string(hash),
		FullName:     in.FullName,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, contract.ErrDuplicate) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}
	return user, nil
}

// Login accepts an email or a username. A refresh token is only issued
// with RememberMe.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest, userAgent string) (*dto.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := s.users.FindByLogin(ctx, req.Login)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.Id.String(),
		"role":    string(user.Role),
		"exp":     now.Add(AccessTokenTTL).Unix(),
	}
	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	var rawRefreshToken string
	if req.RememberMe {
		rawRefreshToken = uuid.New().String()
		err = s.refreshTokens.CreateRefreshToken(ctx, &entity.UserRefreshToken{
			Id:        uuid.New(),
			UserId:    user.Id,
			TokenHash: hashToken(rawRefreshToken),
			ExpiresAt: now.Add(RefreshTokenTTL),
			CreatedAt: now,
			UserAgent: userAgent,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	}

	s.logger.Info("AuthService", "User logged in", map[string]interface{}{"user_id": user.Id, "remember_me": req.RememberMe})
	s.publish(ctx, "USER_LOGIN", map[string]interface{}{
		"user_id": user.Id.String(),
		"device":  userAgent,
		"time":    now.Format(time.RFC822),
	})

	return &dto.LoginResponse{
		AccessToken:  signedToken,
		RefreshToken: rawRefreshToken,
		User:         *s.mapper.ToProfile(user),
	}, nil
}

// Logout revokes the refresh token when one is given. Access tokens are
// stateless and simply expire.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.refreshTokens.RevokeRefreshToken(ctx, hashToken(refreshToken))
}

// Check reports the current user for a verified token. A token whose user
// no longer exists is answered with is_authenticated=false.
func (s *AuthService) Check(ctx context.Context, userID uuid.UUID) *dto.AuthCheckResponse {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return &dto.AuthCheckResponse{IsAuthenticated: false}
	}
	return &dto.AuthCheckResponse{IsAuthenticated: true, User: s.mapper.ToProfile(user)}
}

// Seed creates the given users, skipping those that already exist.
func (s *AuthService) Seed(ctx context.Context, users []SeedUser) error {
	for _, u := range users {
		if _, err := s.createUser(ctx, u); err != nil && !errors.Is(err, ErrAlreadyRegistered) {
			return fmt.Errorf("seed %s: %w", u.Email, err)
		}
	}
	return nil
}

func (s *AuthService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.BaseEvent{Type: eventType, Data: data, OccurredAt: s.now()})
	if err != nil {
		s.logger.Warn("AuthService", "Failed to publish event", map[string]interface{}{"type": eventType, "error": err.Error()})
	}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
