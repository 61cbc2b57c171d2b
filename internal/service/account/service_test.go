package account_test

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/account"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newService(t *testing.T, clk *clock) (*account.Service, *memory.Store) {
	t.Helper()
	logger := log.New()
	logger.SetLevel(log.ErrorLevel)

	store := memory.NewStore()
	options := []account.Option{
		account.WithLogger(logger.WithField("component", "account-test")),
		account.WithHashCost(bcrypt.MinCost),
		account.WithSessionTTL(time.Hour),
	}
	if clk != nil {
		options = append(options, account.WithClock(clk.Now))
	}
	return account.NewService(store, memory.NewSessionRepository(), options...), store
}

func register(t *testing.T, svc *account.Service, username, email string) domain.Customer {
	t.Helper()
	customer, err := svc.Register(context.Background(), account.Registration{
		Username: username,
		Password: "secret-" + username,
		Email:    email,
		FullName: "Full " + username,
		Address:  "Main st. 1",
	})
	require.NoError(t, err)
	return customer
}

func TestRegister(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	customer := register(t, svc, "alice", "Alice@Example.com")
	require.NotEmpty(t, customer.ID)
	require.Equal(t, "alice@example.com", customer.Email)
	require.NotEqual(t, "secret-alice", customer.PasswordHash)
	require.Zero(t, customer.Ranking)

	_, err := svc.Register(ctx, account.Registration{Username: "alice", Password: "whatever", Email: "new@example.com"})
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)

	_, err = svc.Register(ctx, account.Registration{Username: "bob", Password: "whatever", Email: "alice@example.com"})
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		reg  account.Registration
		want error
	}{
		{name: "no username", reg: account.Registration{Password: "secret1", Email: "a@b.c"}, want: domain.ErrUsernameRequired},
		{name: "no email", reg: account.Registration{Username: "a", Password: "secret1"}, want: domain.ErrEmailRequired},
		{name: "short password", reg: account.Registration{Username: "a", Password: "123", Email: "a@b.c"}, want: domain.ErrPasswordTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.reg)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoginAuthenticateLogout(t *testing.T) {
	clk := &clock{now: time.Now().UTC().Truncate(time.Second)}
	svc, _ := newService(t, clk)
	ctx := context.Background()
	registered := register(t, svc, "alice", "alice@example.com")

	_, _, err := svc.Login(ctx, "alice", "wrong-password")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "secret-alice")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	session, customer, err := svc.Login(ctx, "alice", "secret-alice")
	require.NoError(t, err)
	require.Equal(t, registered.ID, customer.ID)
	require.Equal(t, clk.now.Add(time.Hour), session.ExpiresAt)

	resolved, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, registered.ID, resolved.CustomerID)

	_, err = svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	_, err = svc.Authenticate(ctx, "unknown-token")
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)

	require.NoError(t, svc.Logout(ctx, session.Token))
	_, err = svc.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	require.NoError(t, svc.Logout(ctx, session.Token))
}

func TestSessionExpires(t *testing.T) {
	clk := &clock{now: time.Now().UTC()}
	svc, _ := newService(t, clk)
	ctx := context.Background()
	register(t, svc, "alice", "alice@example.com")

	session, _, err := svc.Login(ctx, "alice", "secret-alice")
	require.NoError(t, err)

	clk.now = clk.now.Add(2 * time.Hour)
	_, err = svc.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	customer := register(t, svc, "alice", "alice@example.com")

	err := svc.ChangePassword(ctx, customer.ID, "wrong", "new-secret")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	err = svc.ChangePassword(ctx, customer.ID, "secret-alice", "123")
	require.ErrorIs(t, err, domain.ErrPasswordTooShort)

	require.NoError(t, svc.ChangePassword(ctx, customer.ID, "secret-alice", "new-secret"))

	_, _, err = svc.Login(ctx, "alice", "secret-alice")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "alice", "new-secret")
	require.NoError(t, err)
}

func TestLeaderboard(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()
	alice := register(t, svc, "alice", "alice@example.com")
	register(t, svc, "bob", "bob@example.com")
	carol := register(t, svc, "carol", "carol@example.com")

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		for _, id := range []string{carol.ID, carol.ID, alice.ID} {
			if _, err := tx.Customers().IncrementRanking(ctx, id); err != nil {
				return err
			}
		}
		return nil
	}))

	board, err := svc.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, "carol", board[0].Username)
	require.Equal(t, int64(2), board[0].Ranking)
	require.Equal(t, "alice", board[1].Username)

	profile, err := svc.Profile(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), profile.Ranking)
}
