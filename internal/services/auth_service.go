package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"busease/internal/domain"
	"busease/internal/domain/models"
	"busease/internal/repositories"
	"busease/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService registers users and issues and verifies access tokens.
type AuthService struct {
	Store     repositories.Store
	Secret    []byte
	TTL       time.Duration
	Now       func() time.Time
	RequestID string
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    string
	Img      string
}

type LoginResult struct {
	User  models.PublicUser
	Token string
}

type tokenClaims struct {
	ID      int64 `json:"id"`
	IsAdmin bool  `json:"isAdmin"`
	jwt.RegisteredClaims
}

func (s AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s AuthService) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	switch {
	case in.Username == "":
		return models.PublicUser{}, domain.ValidationError{Field: "username", Msg: "username is required"}
	case in.Email == "" || !strings.Contains(in.Email, "@"):
		return models.PublicUser{}, domain.ValidationError{Field: "email", Msg: "a valid email is required"}
	case in.Password == "":
		return models.PublicUser{}, domain.ValidationError{Field: "password", Msg: "password is required"}
	case in.Phone != "" && !utils.ValidPhone(in.Phone):
		return models.PublicUser{}, domain.ValidationError{Field: "phone", Msg: "phone number must be numeric"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.PublicUser{}, domain.InternalError{Msg: "failed to hash password", Err: err}
	}
	u := models.User{
		Username:     in.Username,
		Email:        in.Email,
		Phone:        in.Phone,
		Img:          in.Img,
		PasswordHash: string(hash),
	}
	if err := s.Store.CreateUser(ctx, &u); err != nil {
		return models.PublicUser{}, err
	}
	utils.LogEvent(s.RequestID, "auth", "register", fmt.Sprintf("user_id=%d", u.ID))
	return u.ToPublic(), nil
}

// Login checks credentials. An unknown username is a NotFoundError and a
// wrong password a ValidationError, so callers can word them differently.
func (s AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	u, err := s.Store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, domain.ValidationError{Field: "password", Msg: "Wrong password or username!", Err: err}
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return LoginResult{}, err
	}
	utils.LogEvent(s.RequestID, "auth", "login", fmt.Sprintf("user_id=%d admin=%t", u.ID, u.IsAdmin))
	return LoginResult{User: u.ToPublic(), Token: token}, nil
}

func (s AuthService) IssueToken(u models.User) (string, error) {
	if len(s.Secret) == 0 {
		return "", domain.InternalError{Msg: "jwt secret not configured"}
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := s.now()
	claims := tokenClaims{
		ID:      int64(u.ID),
		IsAdmin: u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", domain.InternalError{Msg: "failed to sign token", Err: err}
	}
	return signed, nil
}

// ParseToken verifies an HS256 token and returns the caller it identifies.
func (s AuthService) ParseToken(raw string) (domain.RequestContext, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return domain.RequestContext{}, domain.ForbiddenError{Msg: "Token is not valid!"}
	}
	if claims.ID <= 0 {
		return domain.RequestContext{}, domain.ForbiddenError{Msg: "Token is not valid!"}
	}
	return domain.RequestContext{UserID: domain.ID(claims.ID), IsAdmin: claims.IsAdmin}, nil
}

// IsCredentialError reports whether err came from a failed password check.
func IsCredentialError(err error) bool {
	var v domain.ValidationError
	return errors.As(err, &v) && errors.Is(v.Err, bcrypt.ErrMismatchedHashAndPassword)
}
