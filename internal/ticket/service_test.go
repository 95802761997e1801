package ticket_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/crsacramento/BusTicketsServer/internal/account"
	"github.com/crsacramento/BusTicketsServer/internal/messaging"
	"github.com/crsacramento/BusTicketsServer/internal/ticket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserRepo serves a fixed set of users keyed by login.
type fakeUserRepo struct {
	users map[string]*account.User
}

func (f *fakeUserRepo) Create(ctx context.Context, user *account.User) (*account.User, error) {
	f.users[user.Login] = user
	return user, nil
}

func (f *fakeUserRepo) GetByLogin(ctx context.Context, login string) (*account.User, error) {
	user, ok := f.users[login]
	if !ok {
		return nil, account.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) ExistsByCardNumber(ctx context.Context, cardNumber string) (bool, error) {
	for _, u := range f.users {
		if u.CreditCardNum == cardNumber {
			return true, nil
		}
	}
	return false, nil
}

// fakeTicketRepo keeps tickets in memory and mirrors the storage contract,
// including the conditional-update semantics of MarkValidated.
type fakeTicketRepo struct {
	mu        sync.Mutex
	tickets   map[string]*ticket.Ticket
	failBatch error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*ticket.Ticket)}
}

func (f *fakeTicketRepo) CreateBatch(ctx context.Context, batch []*ticket.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failBatch != nil {
		return f.failBatch
	}
	for _, t := range batch {
		copied := *t
		f.tickets[t.ID] = &copied
	}
	return nil
}

func (f *fakeTicketRepo) GetByIDForUser(ctx context.Context, id string, userID int) (*ticket.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tickets[id]
	if !ok || t.UserID != userID {
		return nil, ticket.ErrTicketNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTicketRepo) MarkValidated(ctx context.Context, id string, busMac string, validatedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tickets[id]
	if !ok || t.ValidatedAt != nil {
		return false, nil
	}
	t.BusMacAddress = &busMac
	t.ValidatedAt = &validatedAt
	return true, nil
}

func (f *fakeTicketRepo) ListUnvalidatedByUser(ctx context.Context, userID int) ([]ticket.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]ticket.Ticket, 0)
	for _, t := range f.tickets {
		if t.UserID == userID && t.ValidatedAt == nil {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (f *fakeTicketRepo) ListValidatedByBus(ctx context.Context, busMac string, from, to time.Time) ([]ticket.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]ticket.Ticket, 0)
	for _, t := range f.tickets {
		if t.BusMacAddress == nil || *t.BusMacAddress != busMac {
			continue
		}
		if t.ValidatedAt.Before(from) || t.ValidatedAt.After(to) {
			continue
		}
		result = append(result, *t)
	}
	return result, nil
}

type fakeEvents struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeEvents) Publish(subject string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func newTestService(t *testing.T) (ticket.Service, *fakeTicketRepo, *fakeEvents) {
	t.Helper()

	users := &fakeUserRepo{users: map[string]*account.User{
		"rider1": {ID: 1, Login: "rider1"},
	}}
	repo := newFakeTicketRepo()
	events := &fakeEvents{}
	return ticket.NewService(repo, users, events), repo, events
}

func TestPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("IssuesRequestedCounts", func(t *testing.T) {
		service, _, _ := newTestService(t)

		result, err := service.Purchase(ctx, "rider1", ticket.TierCounts{Tier15: 2, Tier30: 3, Tier60: 1})
		require.NoError(t, err)

		assert.Len(t, result.Tickets, 6)
		assert.False(t, result.Extra)

		byTier := map[int]int{}
		for _, tk := range result.Tickets {
			byTier[tk.ValidityTime]++
			assert.Nil(t, tk.ValidatedAt)
			assert.Nil(t, tk.BusMacAddress)
			assert.Equal(t, 1, tk.UserID)
			assert.NotEmpty(t, tk.ID)
		}
		assert.Equal(t, map[int]int{15: 2, 30: 3, 60: 1}, byTier)
	})

	t.Run("BonusAtThreshold", func(t *testing.T) {
		service, _, _ := newTestService(t)

		result, err := service.Purchase(ctx, "rider1", ticket.TierCounts{Tier15: 4, Tier30: 3, Tier60: 3})
		require.NoError(t, err)

		assert.Len(t, result.Tickets, 11)
		assert.True(t, result.Extra)
	})

	t.Run("NoBonusJustBelowThreshold", func(t *testing.T) {
		service, _, _ := newTestService(t)

		result, err := service.Purchase(ctx, "rider1", ticket.TierCounts{Tier15: 4, Tier30: 3, Tier60: 2})
		require.NoError(t, err)

		assert.Len(t, result.Tickets, 9)
		assert.False(t, result.Extra)
	})

	t.Run("BonusUsesFirstNonzeroTier", func(t *testing.T) {
		cases := []struct {
			name      string
			counts    ticket.TierCounts
			bonusTier int
		}{
			{"OnlyTier30", ticket.TierCounts{Tier30: 10}, 30},
			{"OnlyTier60", ticket.TierCounts{Tier60: 12}, 60},
			{"Tier15Present", ticket.TierCounts{Tier15: 2, Tier60: 8}, 15},
			{"Tier30And60", ticket.TierCounts{Tier30: 1, Tier60: 9}, 30},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				service, _, _ := newTestService(t)

				result, err := service.Purchase(ctx, "rider1", tc.counts)
				require.NoError(t, err)
				require.True(t, result.Extra)
				require.Len(t, result.Tickets, tc.counts.Total()+1)

				byTier := map[int]int{}
				for _, tk := range result.Tickets {
					byTier[tk.ValidityTime]++
				}
				expected := map[int]int{}
				if tc.counts.Tier15 > 0 {
					expected[15] = tc.counts.Tier15
				}
				if tc.counts.Tier30 > 0 {
					expected[30] = tc.counts.Tier30
				}
				if tc.counts.Tier60 > 0 {
					expected[60] = tc.counts.Tier60
				}
				expected[tc.bonusTier]++
				assert.Equal(t, expected, byTier)
			})
		}
	})

	t.Run("AllZeroCounts", func(t *testing.T) {
		service, repo, _ := newTestService(t)

		_, err := service.Purchase(ctx, "rider1", ticket.TierCounts{})
		assert.ErrorIs(t, err, ticket.ErrNoTicketsRequested)
		assert.Empty(t, repo.tickets)
	})

	t.Run("NegativeCount", func(t *testing.T) {
		service, repo, _ := newTestService(t)

		_, err := service.Purchase(ctx, "rider1", ticket.TierCounts{Tier15: -1, Tier30: 5})
		assert.ErrorIs(t, err, ticket.ErrInvalidRequest)
		assert.Empty(t, repo.tickets)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		service, repo, _ := newTestService(t)

		_, err := service.Purchase(ctx, "nobody", ticket.TierCounts{Tier15: 1})
		assert.ErrorIs(t, err, account.ErrUserNotFound)
		assert.Empty(t, repo.tickets)
	})

	t.Run("PersistenceFailureCommitsNothing", func(t *testing.T) {
		service, repo, events := newTestService(t)
		repo.failBatch = errors.New("record store rejected batch")

		_, err := service.Purchase(ctx, "rider1", ticket.TierCounts{Tier15: 3})
		require.Error(t, err)
		assert.Empty(t, repo.tickets)
		assert.Empty(t, events.subjects)
	})

	t.Run("ReturnsFullUnvalidatedSet", func(t *testing.T) {
		service, _, _ := newTestService(t)

		first, err := service.Purchase(ctx, "rider1", ticket.TierCounts{Tier15: 2})
		require.NoError(t, err)
		require.Len(t, first.Tickets, 2)

		second, err := service.Purchase(ctx, "rider1", ticket.TierCounts{Tier30: 1})
		require.NoError(t, err)
		assert.Len(t, second.Tickets, 3)
		assert.False(t, second.Extra)
	})

	t.Run("PublishesPurchaseEvent", func(t *testing.T) {
		service, _, events := newTestService(t)

		_, err := service.Purchase(ctx, "rider1", ticket.TierCounts{Tier15: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{messaging.SubjectTicketsPurchased}, events.subjects)
	})
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	purchaseOne := func(t *testing.T, service ticket.Service) ticket.Ticket {
		t.Helper()
		result, err := service.Purchase(ctx, "rider1", ticket.TierCounts{Tier30: 1})
		require.NoError(t, err)
		require.Len(t, result.Tickets, 1)
		return result.Tickets[0]
	}

	t.Run("SucceedsOnce", func(t *testing.T) {
		service, _, events := newTestService(t)
		tk := purchaseOne(t, service)

		validated, err := service.Validate(ctx, "rider1", tk.ID, "aa:bb:cc:dd:ee:ff")
		require.NoError(t, err)

		require.NotNil(t, validated.BusMacAddress)
		assert.Equal(t, "AA:BB:CC:DD:EE:FF", *validated.BusMacAddress)
		require.NotNil(t, validated.ValidatedAt)
		assert.WithinDuration(t, time.Now(), *validated.ValidatedAt, 5*time.Second)
		assert.Equal(t, 30, validated.ValidityTime)

		assert.Contains(t, events.subjects, messaging.SubjectTicketValidated)
	})

	t.Run("SecondAttemptRejected", func(t *testing.T) {
		service, repo, _ := newTestService(t)
		tk := purchaseOne(t, service)

		first, err := service.Validate(ctx, "rider1", tk.ID, "AA:BB:CC:DD:EE:FF")
		require.NoError(t, err)

		// Different bus, same ticket
		_, err = service.Validate(ctx, "rider1", tk.ID, "11:22:33:44:55:66")
		assert.ErrorIs(t, err, ticket.ErrAlreadyValidated)

		stored, err := repo.GetByIDForUser(ctx, tk.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, *first.BusMacAddress, *stored.BusMacAddress)
		assert.Equal(t, first.ValidatedAt.UTC(), stored.ValidatedAt.UTC())
	})

	t.Run("MalformedBusAddress", func(t *testing.T) {
		service, repo, _ := newTestService(t)
		tk := purchaseOne(t, service)

		for _, mac := range []string{"00:00:00", "AA:BB:CC:DD:EE:GG", "AABBCCDDEEFF", "AA:BB:CC:DD:EE:FF:00", ""} {
			_, err := service.Validate(ctx, "rider1", tk.ID, mac)
			assert.ErrorIs(t, err, ticket.ErrInvalidBusAddress, "mac %q", mac)
		}

		stored, err := repo.GetByIDForUser(ctx, tk.ID, 1)
		require.NoError(t, err)
		assert.Nil(t, stored.ValidatedAt)
		assert.Nil(t, stored.BusMacAddress)
	})

	t.Run("UnknownTicket", func(t *testing.T) {
		service, _, _ := newTestService(t)

		_, err := service.Validate(ctx, "rider1", "missing-id", "AA:BB:CC:DD:EE:FF")
		assert.ErrorIs(t, err, ticket.ErrTicketNotFound)
	})

	t.Run("TicketOfAnotherUserNotVisible", func(t *testing.T) {
		users := &fakeUserRepo{users: map[string]*account.User{
			"rider1": {ID: 1, Login: "rider1"},
			"rider2": {ID: 2, Login: "rider2"},
		}}
		repo := newFakeTicketRepo()
		service := ticket.NewService(repo, users, nil)

		result, err := service.Purchase(ctx, "rider1", ticket.TierCounts{Tier15: 1})
		require.NoError(t, err)

		_, err = service.Validate(ctx, "rider2", result.Tickets[0].ID, "AA:BB:CC:DD:EE:FF")
		assert.ErrorIs(t, err, ticket.ErrTicketNotFound)
	})

	t.Run("ConcurrentAttemptsSingleWinner", func(t *testing.T) {
		service, repo, _ := newTestService(t)
		tk := purchaseOne(t, service)

		const attempts = 32

		macs := make([]string, attempts)
		for i := range macs {
			macs[i] = fmt.Sprintf("AA:BB:CC:DD:EE:%02X", i)
		}

		var wg sync.WaitGroup
		errs := make([]error, attempts)
		winners := make([]*ticket.Ticket, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				winners[i], errs[i] = service.Validate(ctx, "rider1", tk.ID, macs[i])
			}(i)
		}
		wg.Wait()

		var winnerMac string
		successes := 0
		for i, err := range errs {
			if err == nil {
				successes++
				winnerMac = *winners[i].BusMacAddress
			} else {
				assert.ErrorIs(t, err, ticket.ErrAlreadyValidated)
			}
		}
		require.Equal(t, 1, successes)

		stored, err := repo.GetByIDForUser(ctx, tk.ID, 1)
		require.NoError(t, err)
		require.NotNil(t, stored.BusMacAddress)
		assert.Equal(t, winnerMac, *stored.BusMacAddress)
		assert.NotNil(t, stored.ValidatedAt)
	})
}

func TestListUnvalidated(t *testing.T) {
	ctx := context.Background()

	service, _, _ := newTestService(t)

	result, err := service.Purchase(ctx, "rider1", ticket.TierCounts{Tier15: 2})
	require.NoError(t, err)

	_, err = service.Validate(ctx, "rider1", result.Tickets[0].ID, "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	remaining, err := service.ListUnvalidated(ctx, "rider1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	assert.Equal(t, result.Tickets[1].ID, remaining[0].ID)

	_, err = service.ListUnvalidated(ctx, "nobody")
	assert.ErrorIs(t, err, account.ErrUserNotFound)
}
