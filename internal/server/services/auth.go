// Package services contains server-side business logic. This file implements
// AuthService, which handles registration, login, refresh-token rotation and
// logout, plus access-token authentication for the transport layer.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/market/internal/common"
	"github.com/dmitrijs2005/market/internal/dbx"
	"github.com/dmitrijs2005/market/internal/logging"
	"github.com/dmitrijs2005/market/internal/server/auth"
	"github.com/dmitrijs2005/market/internal/server/models"
	"github.com/dmitrijs2005/market/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// Registration is the input of AuthService.Register.
type Registration struct {
	Username     string
	Email        string
	Password     string
	MobileNumber *string
}

// AuthService owns the refresh_tokens rows. Every state change of a refresh
// token happens inside one transaction that holds the row lock.
type AuthService struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	logger      logging.Logger
	now         func() time.Time

	cost      int
	dummyHash []byte
}

// NewAuthService constructs an AuthService. Passwords are hashed with bcrypt
// at the default cost.
func NewAuthService(tx dbx.Transactor, m repomanager.RepositoryManager, codec *auth.Codec, logger logging.Logger) *AuthService {
	s := &AuthService{
		tx:          tx,
		repomanager: m,
		codec:       codec,
		logger:      logger.With("module", "auth"),
		now:         time.Now,
	}
	s.setCost(bcrypt.DefaultCost)
	return s
}

// setCost changes the bcrypt cost and recomputes the hash compared against
// for unknown emails, so both paths take the same time.
func (s *AuthService) setCost(cost int) {
	s.cost = cost
	h, err := bcrypt.GenerateFromPassword([]byte("market-dummy-password"), cost)
	if err != nil {
		panic(fmt.Sprintf("bcrypt: %v", err))
	}
	s.dummyHash = h
}

// Login checks email and password and issues a new token pair. Unknown
// emails and wrong passwords both yield common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	users := s.repomanager.Users(s.tx.Conn())

	user, err := users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		s.logger.Info(ctx, "login rejected", "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	roles, err := users.Roles(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var pair *auth.TokenPair
	if err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var issueErr error
		pair, issueErr = s.issue(ctx, tx, user.ID, roles)
		return issueErr
	}); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return pair, nil
}

// Register creates a user with the USER role and issues its first token
// pair. User, role and refresh token are written in one transaction.
func (s *AuthService) Register(ctx context.Context, r Registration) (*auth.TokenPair, error) {
	username := strings.TrimSpace(r.Username)
	email := strings.TrimSpace(r.Email)
	if username == "" || email == "" || r.Password == "" {
		return nil, common.ErrInvalidInput
	}

	users := s.repomanager.Users(s.tx.Conn())
	if _, err := users.GetUserByLogin(ctx, username); err == nil {
		return nil, common.ErrDuplicateUsername
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if _, err := users.GetUserByEmail(ctx, email); err == nil {
		return nil, common.ErrDuplicateEmail
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if err != nil {
		// passwords over 72 bytes end up here
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	roles := []string{common.RoleUser}
	var pair *auth.TokenPair
	var userID string
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			UserName:     username,
			Email:        email,
			PasswordHash: hash,
			MobileNumber: r.MobileNumber,
		})
		if err != nil {
			return err
		}
		userID = u.ID

		if err := s.repomanager.Users(tx).AddRole(ctx, u.ID, common.RoleUser); err != nil {
			return err
		}

		pair, err = s.issue(ctx, tx, u.ID, roles)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", userID)
	return pair, nil
}

// Refresh rotates a refresh token: the presented row is locked, checked,
// replaced by a new one and deleted, all in one transaction. Of two
// concurrent calls with the same token the second waits for the lock and
// then gets common.ErrTokenNotFound.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	now := s.now()

	tok, err := s.codec.Verify(refreshToken, now)
	if err != nil || !tok.IsType(auth.TokenRefresh) {
		return nil, common.ErrInvalidToken
	}

	var pair *auth.TokenPair
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		rec, err := repo.FindForUpdate(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrTokenNotFound
			}
			return err
		}
		if rec.Revoked {
			return common.ErrTokenBlocked
		}
		if !now.Before(rec.Expires) {
			return common.ErrTokenExpired
		}
		if rec.UserID != tok.Subject {
			return common.ErrInvalidToken
		}

		roles, err := s.repomanager.Users(tx).Roles(ctx, rec.UserID)
		if err != nil {
			return err
		}

		pair, err = s.issue(ctx, tx, rec.UserID, roles)
		if err != nil {
			return err
		}

		return repo.Delete(ctx, refreshToken)
	})
	if err != nil {
		s.logger.Debug(ctx, "refresh rejected", "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "refresh token rotated", "user_id", tok.Subject)
	return pair, nil
}

// Logout deletes a refresh token under its row lock.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return common.ErrInvalidInput
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)
		rec, err := repo.FindForUpdate(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrTokenNotFound
			}
			return err
		}
		if err := repo.Delete(ctx, refreshToken); err != nil {
			return err
		}
		s.logger.Info(ctx, "user logged out", "user_id", rec.UserID)
		return nil
	})
}

// LogoutAll deletes every refresh token of userID and returns how many
// sessions were ended.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, common.ErrInvalidInput
	}

	n, err := s.repomanager.RefreshTokens(s.tx.Conn()).DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.logger.Info(ctx, "all sessions ended", "user_id", userID, "count", n)
	return n, nil
}

// Authenticate resolves an access token to its principal.
func (s *AuthService) Authenticate(accessToken string) (*auth.Principal, error) {
	tok, err := s.codec.Verify(accessToken, s.now())
	if err != nil {
		return nil, err
	}
	if !tok.IsType(auth.TokenAccess) {
		return nil, common.ErrInvalidToken
	}
	return &auth.Principal{UserID: tok.Subject, Roles: tok.Roles}, nil
}

// issue mints a pair and stores its refresh token through db.
func (s *AuthService) issue(ctx context.Context, db dbx.DBTX, userID string, roles []string) (*auth.TokenPair, error) {
	pair, err := s.codec.IssuePair(userID, roles, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repomanager.RefreshTokens(db).Create(ctx, &models.RefreshToken{
		UserID:  userID,
		Token:   pair.RefreshToken,
		Expires: pair.RefreshExpiresAt,
	}); err != nil {
		return nil, err
	}

	return pair, nil
}
