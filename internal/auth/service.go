package auth

import (
	"context"
	"time"

	"github.com/bytrustu/sns/internal/apperr"
	"github.com/bytrustu/sns/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrMissingFields      = apperr.Validation("missing_fields", "email, nickname, password required")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid_credentials", "invalid credentials")
	ErrRefreshInvalid     = apperr.New(apperr.KindUnauthorized, "refresh_invalid", "refresh token invalid")
	ErrEmailTaken         = apperr.Forbidden("email_taken", "email already in use")
	ErrUserNotFound       = apperr.NotFound("user_not_found", "user not found")
)

const uniqueViolation = "23505"

type Service struct {
	secret []byte
	db     db.Querier
}

type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     db,
	}
}

// Signup creates the account and logs it in. Emails are unique.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (User, TokenResponse, error) {
	if req.Email == "" || req.Nickname == "" || req.Password == "" {
		return User{}, TokenResponse{}, ErrMissingFields
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, TokenResponse{}, errors.Wrap(err, "hash password")
	}

	user := User{
		Email:        req.Email,
		Nickname:     req.Nickname,
		PasswordHash: string(hash),
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (email, nickname, password_hash)
		VALUES ($1,$2,$3)
		RETURNING id, created_at, updated_at
	`, user.Email, user.Nickname, user.PasswordHash)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, TokenResponse{}, ErrEmailTaken
		}
		return User{}, TokenResponse{}, errors.Wrap(err, "insert user")
	}

	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, nickname, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`, req.Email)

	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.Nickname, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, TokenResponse{}, ErrInvalidCredentials
		}
		return User{}, TokenResponse{}, errors.Wrap(err, "load user for login")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, TokenResponse{}, ErrInvalidCredentials
	}

	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

// Logout revokes the refresh token. Access tokens expire on their own.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE token = $1 AND revoked_at IS NULL
	`, refreshToken)
	return errors.Wrap(err, "revoke refresh token")
}

func (s *Service) Me(ctx context.Context, userID int64) (User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, nickname, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`, userID)
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.Nickname, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, errors.Wrap(err, "load user")
	}
	return user, nil
}

// AccessToken signs a short-lived bearer token without issuing a refresh token.
func (s *Service) AccessToken(userID int64) (string, error) {
	return s.signToken(userID, accessTokenTTL)
}

func (s *Service) GenerateTokens(ctx context.Context, userID int64) (TokenResponse, error) {
	access, err := s.AccessToken(userID)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := s.signToken(userID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, userID, refreshTokenTTL); err != nil {
		return TokenResponse{}, errors.Wrap(err, "save refresh token")
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (int64, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return 0, ErrRefreshInvalid
	}

	userID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || userID != claims.UserID || time.Now().After(expiresAt) {
		return 0, ErrRefreshInvalid
	}
	return claims.UserID, nil
}

func (s *Service) ValidateAccessToken(token string) (int64, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

func (s *Service) signToken(userID int64, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), userID, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (int64, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var userID int64
	var expiresAt time.Time
	if err := row.Scan(&userID, &expiresAt); err != nil {
		return 0, time.Time{}, err
	}
	return userID, expiresAt, nil
}
