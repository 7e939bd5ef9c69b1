package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"jobook/internal/constants"
	"jobook/internal/storage"
	"jobook/internal/storage/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// RegisterInput 注册参数
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Session 登录结果
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// AuthService 注册、登录与会话校验
type AuthService struct {
	repo       Repository
	sessions   KeyValue
	sessionTTL time.Duration
	bcryptCost int
	logger     zerolog.Logger
}

// NewAuthService sessionTTL<=0 时使用默认 7 天
func NewAuthService(repo Repository, sessions KeyValue, sessionTTL time.Duration, bcryptCost int, logger zerolog.Logger) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = constants.DefaultSessionTTL
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		repo:       repo,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		bcryptCost: bcryptCost,
		logger:     logger.With().Str("component", "auth_service").Logger(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalidf("email %q is not valid", email)
	}
	return nil
}

// Register 只允许注册候选人和公司账号
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return nil, invalidf("password must be at least %d characters", minPasswordLength)
	}
	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if role != constants.RoleCandidate && role != constants.RoleCompany {
		return nil, invalidf("role must be %s or %s", constants.RoleCandidate, constants.RoleCompany)
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, invalidf("full_name is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{Email: email, PasswordHash: string(hash), FullName: fullName, Role: role}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, conflictf("email %s is already registered", email)
		}
		return nil, err
	}
	s.logger.Info().Uint64("user_id", user.ID).Str("role", role).Msg("新用户注册")
	return user, nil
}

// Login 校验密码并签发会话
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	token, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	key := fmt.Sprintf(constants.KeyAuthSession, token.String())
	if err := s.sessions.Set(ctx, key, strconv.FormatUint(user.ID, 10), s.sessionTTL); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &Session{Token: token.String(), ExpiresAt: time.Now().Add(s.sessionTTL), User: user}, nil
}

// Authenticate 由会话令牌解析当前用户
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}
	val, err := s.sessions.Get(ctx, fmt.Sprintf(constants.KeyAuthSession, token))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: session expired", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupted session", ErrUnauthorized)
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: account no longer exists", ErrUnauthorized)
	}
	return user, err
}

// Logout 撤销会话，会话不存在不报错
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Del(ctx, fmt.Sprintf(constants.KeyAuthSession, strings.TrimSpace(token)))
}

// EnsureAdmin 启动时创建管理员账号，已存在时不做修改
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}
	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.repo.CreateUser(ctx, &models.User{Email: email, PasswordHash: string(hash), FullName: "Administrator", Role: constants.RoleAdmin}); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		return err
	}
	s.logger.Info().Str("email", email).Msg("管理员账号已创建")
	return nil
}
