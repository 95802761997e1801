package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/crsacramento/BusTicketsServer/internal/account"
	"github.com/crsacramento/BusTicketsServer/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	byLogin map[string]*account.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byLogin: make(map[string]*account.User)}
}

func (f *fakeRepo) Create(ctx context.Context, user *account.User) (*account.User, error) {
	user.ID = len(f.byLogin) + 1
	f.byLogin[user.Login] = user
	return user, nil
}

func (f *fakeRepo) GetByLogin(ctx context.Context, login string) (*account.User, error) {
	user, ok := f.byLogin[login]
	if !ok {
		return nil, account.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepo) ExistsByCardNumber(ctx context.Context, cardNumber string) (bool, error) {
	for _, u := range f.byLogin {
		if u.CreditCardNum == cardNumber {
			return true, nil
		}
	}
	return false, nil
}

func validRequest() account.RegisterRequest {
	return account.RegisterRequest{
		Name:         "Jane Rider",
		Password:     "secret-password",
		Login:        "jane.rider",
		CardNumber:   "12345678",
		CardType:     account.CardTypeVisa,
		CardValidity: 1893456000, // 2030-01-01T00:00:00Z
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesUser", func(t *testing.T) {
		repo := newFakeRepo()
		service := account.NewService(repo, config.PolicyConfig{})

		user, err := service.Register(ctx, validRequest())
		require.NoError(t, err)

		assert.NotZero(t, user.ID)
		assert.Equal(t, "jane.rider", user.Login)
		assert.Equal(t, "12345678", user.CreditCardNum)
		assert.Equal(t, account.CardTypeVisa, user.CreditCardType)
		// Epoch seconds become a UTC timestamp
		assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), user.CreditCardVal)
	})

	t.Run("DuplicateLogin", func(t *testing.T) {
		repo := newFakeRepo()
		service := account.NewService(repo, config.PolicyConfig{})

		_, err := service.Register(ctx, validRequest())
		require.NoError(t, err)

		req := validRequest()
		req.CardNumber = "87654321"
		_, err = service.Register(ctx, req)
		assert.ErrorIs(t, err, account.ErrLoginExists)
	})

	t.Run("DuplicateCardNumberPolicyOn", func(t *testing.T) {
		repo := newFakeRepo()
		service := account.NewService(repo, config.PolicyConfig{UniqueCardNumbers: true})

		_, err := service.Register(ctx, validRequest())
		require.NoError(t, err)

		req := validRequest()
		req.Login = "other.rider"
		_, err = service.Register(ctx, req)
		assert.ErrorIs(t, err, account.ErrCardNumberExists)
	})

	t.Run("DuplicateCardNumberPolicyOff", func(t *testing.T) {
		repo := newFakeRepo()
		service := account.NewService(repo, config.PolicyConfig{UniqueCardNumbers: false})

		_, err := service.Register(ctx, validRequest())
		require.NoError(t, err)

		req := validRequest()
		req.Login = "other.rider"
		_, err = service.Register(ctx, req)
		assert.NoError(t, err)
	})
}

func TestGetByLogin(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepo()
	service := account.NewService(repo, config.PolicyConfig{})

	_, err := service.GetByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, account.ErrUserNotFound)

	created, err := service.Register(ctx, validRequest())
	require.NoError(t, err)

	found, err := service.GetByLogin(ctx, created.Login)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}
