package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bytrustu/sns/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"
)

func TestSignupAndLogin(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	createdAt := time.Now().Add(-time.Minute)
	updatedAt := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("user@example.com", "bytrustu", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), createdAt, updatedAt))

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), int64(1), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock)
	user, tokens, err := svc.Signup(context.Background(), SignupRequest{
		Email:    "user@example.com",
		Nickname: "bytrustu",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID != 1 || tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected user and tokens")
	}

	mock.ExpectQuery(`SELECT id, email, nickname, password_hash, created_at, updated_at`).
		WithArgs("user@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "nickname", "password_hash", "created_at", "updated_at"}).
			AddRow(user.ID, user.Email, user.Nickname, user.PasswordHash, createdAt, updatedAt))

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), user.ID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	loggedIn, loginTokens, err := svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.Nickname != "bytrustu" || loginTokens.AccessToken == "" {
		t.Fatalf("expected login user and tokens")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSignupMissingFields(t *testing.T) {
	svc := NewService("test-secret", nil)
	_, _, err := svc.Signup(context.Background(), SignupRequest{Email: "", Nickname: "u", Password: "p"})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected missing fields error, got %v", err)
	}
}

func TestSignupInsertError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("user@example.com", "u", pgxmock.AnyArg()).
		WillReturnError(errAuth)

	svc := NewService("test-secret", mock)
	if _, _, err := svc.Signup(context.Background(), SignupRequest{Email: "user@example.com", Nickname: "u", Password: "p"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoginInvalidPassword(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	hash, _ := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	now := time.Now()
	mock.ExpectQuery(`SELECT id, email, nickname, password_hash, created_at, updated_at`).
		WithArgs("user@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "nickname", "password_hash", "created_at", "updated_at"}).
			AddRow(int64(1), "user@example.com", "u", string(hash), now, now))

	svc := NewService("test-secret", mock)
	_, _, err = svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, email, nickname, password_hash`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService("test-secret", mock)
	_, _, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "x"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginStoreErrorIsInternal(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, email, nickname, password_hash`).
		WithArgs("user@example.com").
		WillReturnError(errAuth)

	svc := NewService("test-secret", mock)
	_, _, err = svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "x"})
	if !errors.Is(err, errAuth) || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if status, _ := apperr.Describe(err); status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
}

func TestValidateRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), int64(1), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock)
	tokens, err := svc.GenerateTokens(context.Background(), 1)
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	expiresAt := time.Now().Add(5 * time.Minute)
	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow(int64(1), expiresAt))

	userID, err := svc.ValidateRefreshToken(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("validate refresh: %v", err)
	}
	if userID != 1 {
		t.Fatalf("unexpected user_id: %d", userID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestValidateRefreshTokenExpiredRow(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService("test-secret", mock)
	token, err := svc.signToken(1, refreshTokenTTL)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(token).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow(int64(1), time.Now().Add(-time.Minute)))

	if _, err := svc.ValidateRefreshToken(context.Background(), token); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected refresh invalid, got %v", err)
	}
}

func TestValidateAccessToken(t *testing.T) {
	svc := NewService("test-secret", nil)
	token, err := svc.signToken(42, accessTokenTTL)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	userID, err := svc.ValidateAccessToken(token)
	if err != nil || userID != 42 {
		t.Fatalf("expected user 42, got %d %v", userID, err)
	}

	other := NewService("other-secret", nil)
	if _, err := other.ValidateAccessToken(token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestParseTokenWrongMethod(t *testing.T) {
	svc := NewService("test-secret", nil)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1})
	signed, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := svc.parseToken(signed); err == nil {
		t.Fatalf("expected none-signed token to be rejected")
	}
}

func TestLogoutRevokes(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs("refresh").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := NewService("test-secret", mock)
	if err := svc.Logout(context.Background(), "refresh"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMe(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "nickname", "password_hash", "created_at", "updated_at"}).
			AddRow(int64(3), "a@b.c", "abc", "hash", now, now))

	svc := NewService("test-secret", mock)
	user, err := svc.Me(context.Background(), 3)
	if err != nil || user.Nickname != "abc" {
		t.Fatalf("unexpected me result: %+v %v", user, err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("taken@example.com", "u", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	svc := NewService("test-secret", mock)
	_, _, err = svc.Signup(context.Background(), SignupRequest{Email: "taken@example.com", Nickname: "u", Password: "p"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
}

func TestMeUnknownUser(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnError(pgx.ErrNoRows)

	svc := NewService("test-secret", mock)
	if _, err := svc.Me(context.Background(), 9); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

var errAuth = errors.New("auth error")
