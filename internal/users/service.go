package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const votecodeLength = 12

const votecodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var (
	// ErrUserNotFound indicates the user id did not resolve to a member.
	ErrUserNotFound = errors.New("users: user not found")

	errMissingDatabase = errors.New("users: database handle is required")

	noOpLogger = zap.NewNop()
)

// ServiceConfig describes the dependencies of the member service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages member records and votecode issuance.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the member service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, now: clock, logger: logger}, nil
}

// Get returns the member with the provided id.
func (s *Service) Get(ctx context.Context, userID uint) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Take(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RegenerateVotecode replaces the member's votecode with a fresh random
// token and returns the updated record.
func (s *Service) RegenerateVotecode(ctx context.Context, userID uint) (*User, error) {
	code, err := GenerateVotecode()
	if err != nil {
		return nil, err
	}

	var user User
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
			}
			return err
		}
		return tx.Model(&user).Update("votecode", code).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	s.logger.Info("votecode regenerated", zap.Uint("user_id", userID))
	user.Votecode = code
	return &user, nil
}

// GenerateVotecode produces a random lowercase alphanumeric token.
func GenerateVotecode() (string, error) {
	alphabetSize := big.NewInt(int64(len(votecodeAlphabet)))
	code := make([]byte, votecodeLength)
	for i := range code {
		index, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		code[i] = votecodeAlphabet[index.Int64()]
	}
	return string(code), nil
}
