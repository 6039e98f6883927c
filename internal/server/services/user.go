package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/cryptox"
	"github.com/dmitrijs2005/taskforge/internal/dbx"
	"github.com/dmitrijs2005/taskforge/internal/logging"
	"github.com/dmitrijs2005/taskforge/internal/server/auth"
	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskforge/internal/server/storage"
)

const (
	minPasswordLength = 6
	maxUserNameLength = 32
	searchLimit       = 20
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"-"`
}

type RegisterInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	UserName string `json:"username"`
	Password string `json:"password"`
}

// ProfileInput carries optional profile changes; nil means unchanged.
type ProfileInput struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	UserName *string `json:"username"`
}

// UserService handles accounts and sessions:
// - Register, Login, RefreshToken, Logout
// - profile reads and updates, avatar, account removal, search
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	cipher                       *cryptox.FieldCipher
	store                        storage.FileStore
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	passwordCost                 int
}

func NewUserService(d Deps) *UserService {
	return &UserService{
		db:                           d.DB,
		repomanager:                  d.RepoManager,
		cipher:                       d.Cipher,
		store:                        d.Store,
		logger:                       d.logger("users"),
		jwtSecret:                    []byte(d.Config.SecretKey),
		accessTokenValidityDuration:  d.Config.AccessTokenValidityDuration,
		refreshTokenValidityDuration: d.Config.RefreshTokenValidityDuration,
		passwordCost:                 cryptox.DefaultPasswordCost,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.UserName = strings.TrimSpace(in.UserName)

	if err := validateProfile(in.FullName, in.Email, in.UserName); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return nil, invalid("password must be at least %d characters", minPasswordLength)
	}

	digest, err := cryptox.HashPassword(in.Password, s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row := &models.UserRow{UserName: in.UserName, PasswordHash: digest}
	if err := s.sealIdentity(row, in.FullName, in.Email); err != nil {
		return nil, err
	}

	row, err = s.repomanager.Users(s.db).Create(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return s.open(row)
}

// Login accepts an e-mail address or a username. Any previous session of
// the user is revoked.
func (s *UserService) Login(ctx context.Context, login, password string) (*TokenPair, error) {
	repo := s.repomanager.Users(s.db)

	login = strings.TrimSpace(login)
	var (
		row *models.UserRow
		err error
	)
	if strings.Contains(login, "@") {
		row, err = repo.GetByEmailHash(ctx, s.cipher.SearchHash(login))
	} else {
		row, err = repo.GetByUserName(ctx, login)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	if !cryptox.ComparePassword(row.PasswordHash, password) {
		return nil, common.ErrorUnauthorized
	}

	return dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*TokenPair, error) {
		if err := s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, row.ID); err != nil {
			return nil, fmt.Errorf("error revoking sessions: %w", err)
		}
		if err := s.repomanager.Users(tx).TouchLastAccess(ctx, row.ID, time.Now()); err != nil {
			return nil, fmt.Errorf("error updating last access: %w", err)
		}
		return s.generateTokenPair(ctx, row.ID, tx)
	})
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	return dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*TokenPair, error) {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return nil, fmt.Errorf("error deleting refresh token: %w", err)
		}
		return s.generateTokenPair(ctx, token.UserID, tx)
	})
}

func (s *UserService) Logout(ctx context.Context, userID int64) error {
	if err := s.repomanager.RefreshTokens(s.db).DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("error revoking sessions: %w", err)
	}
	return nil
}

func (s *UserService) Me(ctx context.Context, userID int64) (*models.User, error) {
	row, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.open(row)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	row, err := repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	current, err := s.open(row)
	if err != nil {
		return nil, err
	}

	fullName, email, userName := current.FullName, current.Email, current.UserName
	if in.FullName != nil {
		fullName = strings.TrimSpace(*in.FullName)
	}
	if in.Email != nil {
		email = strings.TrimSpace(*in.Email)
	}
	if in.UserName != nil {
		userName = strings.TrimSpace(*in.UserName)
	}
	if err := validateProfile(fullName, email, userName); err != nil {
		return nil, err
	}

	row.UserName = userName
	if err := s.sealIdentity(row, fullName, email); err != nil {
		return nil, err
	}
	if err := repo.Update(ctx, row); err != nil {
		return nil, fmt.Errorf("error updating user: %w", err)
	}
	return s.open(row)
}

func (s *UserService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	repo := s.repomanager.Users(s.db)

	row, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !cryptox.ComparePassword(row.PasswordHash, oldPassword) {
		return invalid("current password does not match")
	}
	if utf8.RuneCountInString(newPassword) < minPasswordLength {
		return invalid("password must be at least %d characters", minPasswordLength)
	}

	digest, err := cryptox.HashPassword(newPassword, s.passwordCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return repo.UpdatePassword(ctx, userID, digest)
}

// UpdateImage replaces the avatar. A nil upload removes it.
func (s *UserService) UpdateImage(ctx context.Context, userID int64, upload *Upload) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	row, err := repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var url string
	if upload != nil {
		if url, err = saveUpload(ctx, s.store, upload); err != nil {
			return nil, fmt.Errorf("error storing image: %w", err)
		}
	}

	if err := repo.UpdateImage(ctx, userID, url); err != nil {
		removeFiles(ctx, s.store, s.logger, url)
		return nil, fmt.Errorf("error updating image: %w", err)
	}
	removeFiles(ctx, s.store, s.logger, row.Image)

	row.Image = url
	return s.open(row)
}

func (s *UserService) Delete(ctx context.Context, userID int64) error {
	repo := s.repomanager.Users(s.db)

	row, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	removeFiles(ctx, s.store, s.logger, row.Image)
	return nil
}

// Search matches usernames by prefix and returns basic info only.
func (s *UserService) Search(ctx context.Context, prefix string) ([]models.UserBasic, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, invalid("search term is required")
	}
	return s.repomanager.Users(s.db).SearchByUserName(ctx, prefix, searchLimit)
}

// --- helpers below ---

func validateProfile(fullName, email, userName string) error {
	if fullName == "" {
		return invalid("full name is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return invalid("e-mail is invalid")
	}
	if userName == "" || strings.ContainsAny(userName, " @\t\n") {
		return invalid("username is invalid")
	}
	if utf8.RuneCountInString(userName) > maxUserNameLength {
		return invalid("username is longer than %d characters", maxUserNameLength)
	}
	return nil
}

func (s *UserService) sealIdentity(row *models.UserRow, fullName, email string) error {
	nameEnc, err := s.cipher.Encrypt(fullName)
	if err != nil {
		return fmt.Errorf("encrypt name: %w", err)
	}
	emailEnc, err := s.cipher.Encrypt(strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("encrypt email: %w", err)
	}
	row.FullNameEnc = nameEnc
	row.EmailEnc = emailEnc
	row.EmailHash = s.cipher.SearchHash(email)
	return nil
}

func (s *UserService) open(row *models.UserRow) (*models.User, error) {
	fullName, err := s.cipher.Decrypt(row.FullNameEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt name: %w", err)
	}
	email, err := s.cipher.Decrypt(row.EmailEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt email: %w", err)
	}
	return &models.User{
		ID:         row.ID,
		FullName:   fullName,
		Email:      email,
		UserName:   row.UserName,
		Image:      row.Image,
		LastAccess: row.LastAccess,
		CreatedAt:  row.CreatedAt,
	}, nil
}

// displayName is used in invitations; it falls back to the username.
func (s *UserService) displayName(ctx context.Context, userID int64) string {
	row, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	if u, err := s.open(row); err == nil && u.FullName != "" {
		return u.FullName
	}
	return row.UserName
}

func (s *UserService) generateTokenPair(ctx context.Context, userID int64, tx dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
