package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crsacramento/BusTicketsServer/internal/config"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrLoginExists      = errors.New("login already registered")
	ErrCardNumberExists = errors.New("card number already registered")
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
}

type service struct {
	repo   Repository
	policy config.PolicyConfig
}

func NewService(repo Repository, policy config.PolicyConfig) Service {
	return &service{
		repo:   repo,
		policy: policy,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if _, err := s.repo.GetByLogin(ctx, req.Login); err == nil {
		return nil, ErrLoginExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check login: %w", err)
	}

	// Card-number uniqueness is deployment policy, format is always checked
	if s.policy.UniqueCardNumbers {
		exists, err := s.repo.ExistsByCardNumber(ctx, req.CardNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to check card number: %w", err)
		}
		if exists {
			return nil, ErrCardNumberExists
		}
	}

	user := &User{
		Name:           req.Name,
		Password:       req.Password,
		Login:          req.Login,
		CreditCardNum:  req.CardNumber,
		CreditCardType: req.CardType,
		CreditCardVal:  time.Unix(req.CardValidity, 0).UTC(),
	}

	return s.repo.Create(ctx, user)
}

func (s *service) GetByLogin(ctx context.Context, login string) (*User, error) {
	return s.repo.GetByLogin(ctx, login)
}
