package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	optionerrors "github.com/abgdnv/gocommerce/option_service/internal/errors"
	"github.com/abgdnv/gocommerce/option_service/internal/store/db"
	"github.com/abgdnv/gocommerce/option_service/internal/store/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipIntegrationTests = "OPTION_SVC_SKIP_INTEGRATION_TESTS"

// PgStoreSuite runs the PgStore against a real PostgreSQL with the embedded migrations applied.
type PgStoreSuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	store       *PgStore
	logger      *slog.Logger
	ctx         context.Context
}

func (s *PgStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("options_db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgxpool")

	for i := range 10 {
		s.logger.Info("Pinging PostgreSQL database", "attempt", i+1)
		err = s.dbPool.Ping(s.ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second * 2)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	require.NoError(s.T(), migrations.Up(connStr), "Failed to apply migrations")
	// a second run is a no-op
	require.NoError(s.T(), migrations.Up(connStr))

	s.store = NewPgStore(s.dbPool)
}

func (s *PgStoreSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

func (s *PgStoreSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE options, items CASCADE")
	require.NoError(s.T(), err, "Failed to truncate tables")
}

func TestPgStoreIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(PgStoreSuite))
}

func (s *PgStoreSuite) TestSaveAndFind() {
	// given
	itemID := uuid.New()
	option := newOption(itemID, "color", "red", "blue")

	// when
	saved, err := s.store.Save(s.ctx, option)

	// then
	s.Require().NoError(err)
	s.Equal(option.ID, saved.ID)
	s.Equal(int32(1), saved.Version)
	s.Equal(option.Variants, saved.Variants)

	byName, err := s.store.FindByParentAndName(s.ctx, itemID, "color")
	s.Require().NoError(err)
	s.Equal(saved, byName)

	byValue, err := s.store.FindByNameValueAndParent(s.ctx, "color", "blue", itemID)
	s.Require().NoError(err)
	// the EXISTS filter must not drop the other variants
	s.Len(byValue.Variants, 2)

	byIDValue, err := s.store.FindByIDAndVariantValue(s.ctx, option.ID, "red")
	s.Require().NoError(err)
	s.Equal(option.ID, byIDValue.ID)

	_, err = s.store.FindByIDAndVariantValue(s.ctx, option.ID, "green")
	s.ErrorIs(err, optionerrors.ErrOptionNotFound)
	_, err = s.store.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, optionerrors.ErrOptionNotFound)
}

func (s *PgStoreSuite) TestSave_UpdateKeepsTokensAndBumpsVersion() {
	// given
	option := newOption(uuid.New(), "color", "red", "blue")
	first, err := s.store.Save(s.ctx, option)
	s.Require().NoError(err)

	// when
	first.Name = "colour"
	first.Variants[0].Value = "crimson"
	first.Variants[0].Stock = 7
	second, err := s.store.Save(s.ctx, first)

	// then
	s.Require().NoError(err)
	s.Equal(int32(2), second.Version)
	s.Equal("colour", second.Name)
	s.Equal(db.OptionVariant{Token: option.Variants[0].Token, Value: "crimson", Stock: 7}, second.Variants[0])
	s.Equal(option.Variants[1], second.Variants[1])
}

func (s *PgStoreSuite) TestSave_UniqueViolations() {
	itemID := uuid.New()
	first := newOption(itemID, "color", "red")
	_, err := s.store.Save(s.ctx, first)
	s.Require().NoError(err)

	s.Run("same item and name under another id", func() {
		_, err := s.store.Save(s.ctx, newOption(itemID, "color", "blue"))
		s.ErrorIs(err, optionerrors.ErrUniqueViolation)
	})
	s.Run("duplicate value appended", func() {
		_, err := s.store.AddVariant(s.ctx, first.ID, db.OptionVariant{Token: uuid.New(), Value: "red", Stock: 1})
		s.ErrorIs(err, optionerrors.ErrUniqueViolation)
	})
	s.Run("negative stock is rejected by the check constraint", func() {
		o := newOption(uuid.New(), "size", "M")
		o.Variants[0].Stock = -1
		_, err := s.store.Save(s.ctx, o)
		s.ErrorIs(err, optionerrors.ErrInvalidStock)
	})

	stored, err := s.store.FindByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Len(stored.Variants, 1)
	s.Equal(int32(1), stored.Version)
}

func (s *PgStoreSuite) TestAddVariant_AppendsAtNextPosition() {
	// given
	option, err := s.store.Save(s.ctx, newOption(uuid.New(), "color", "red", "blue"))
	s.Require().NoError(err)
	token := uuid.New()

	// when
	saved, err := s.store.AddVariant(s.ctx, option.ID, db.OptionVariant{Token: token, Value: "green", Stock: 9})

	// then
	s.Require().NoError(err)
	s.Equal(int32(2), saved.Version)
	s.Equal([]string{"red", "blue", "green"}, values(saved))
	s.Equal(db.OptionVariant{Token: token, Value: "green", Stock: 9}, saved.Variants[2])
	s.Equal([]int32{0, 1, 2}, s.positions(option.ID))

	_, err = s.store.AddVariant(s.ctx, uuid.New(), db.OptionVariant{Token: uuid.New(), Value: "x", Stock: 1})
	s.ErrorIs(err, optionerrors.ErrOptionNotFound)
}

func (s *PgStoreSuite) TestSave_StaleVersion() {
	// given
	read, err := s.store.Save(s.ctx, newOption(uuid.New(), "color", "red"))
	s.Require().NoError(err)
	_, err = s.store.AddVariant(s.ctx, read.ID, db.OptionVariant{Token: uuid.New(), Value: "blue", Stock: 1})
	s.Require().NoError(err)

	// when
	read.Name = "colour"
	read.Variants[0].Stock = 0
	_, err = s.store.Save(s.ctx, read)

	// then
	s.ErrorIs(err, optionerrors.ErrOptimisticLock)
	stored, err := s.store.FindByID(s.ctx, read.ID)
	s.Require().NoError(err)
	s.Equal("color", stored.Name)
	s.Equal(int64(1), stored.Variants[0].Stock)

	// a missing option is not a lock conflict
	_, err = s.store.DeleteAllByParent(s.ctx, read.ItemID)
	s.Require().NoError(err)
	_, err = s.store.Save(s.ctx, stored)
	s.ErrorIs(err, optionerrors.ErrOptionNotFound)
}

func (s *PgStoreSuite) TestAddVariant_KeepsUpdateCommittedMeanwhile() {
	// given
	base, err := s.store.Save(s.ctx, newOption(uuid.New(), "color", "red"))
	s.Require().NoError(err)

	// when
	err = s.store.WithinTransaction(s.ctx, func(tx OptionStore) error {
		_, err := tx.FindByParentAndName(s.ctx, base.ItemID, "color")
		s.Require().NoError(err)

		other, err := s.store.FindByID(s.ctx, base.ID)
		s.Require().NoError(err)
		other.Name = "colour"
		other.Variants[0].Value = "crimson"
		other.Variants[0].Stock = 3
		_, err = s.store.Save(s.ctx, other)
		s.Require().NoError(err)

		_, err = tx.AddVariant(s.ctx, base.ID, db.OptionVariant{Token: uuid.New(), Value: "blue", Stock: 5})
		return err
	})

	// then
	s.Require().NoError(err)
	stored, err := s.store.FindByID(s.ctx, base.ID)
	s.Require().NoError(err)
	s.Equal("colour", stored.Name)
	s.Require().Len(stored.Variants, 2)
	s.Equal("crimson", stored.Variants[0].Value)
	s.Equal(int64(3), stored.Variants[0].Stock)
	s.Equal("blue", stored.Variants[1].Value)
	s.Equal(int64(5), stored.Variants[1].Stock)
	s.Equal(int32(3), stored.Version)
}

func (s *PgStoreSuite) TestSave_RejectsUpdateAfterAppendCommittedMeanwhile() {
	// given
	base, err := s.store.Save(s.ctx, newOption(uuid.New(), "color", "red"))
	s.Require().NoError(err)

	// when
	err = s.store.WithinTransaction(s.ctx, func(tx OptionStore) error {
		o, err := tx.FindByIDAndVariantValue(s.ctx, base.ID, "red")
		s.Require().NoError(err)

		_, err = s.store.AddVariant(s.ctx, base.ID, db.OptionVariant{Token: uuid.New(), Value: "green", Stock: 1})
		s.Require().NoError(err)

		o.Name = "colour"
		_, err = tx.Save(s.ctx, o)
		return err
	})

	// then
	s.ErrorIs(err, optionerrors.ErrOptimisticLock)
	stored, err := s.store.FindByID(s.ctx, base.ID)
	s.Require().NoError(err)
	s.Equal("color", stored.Name)
	s.Equal([]string{"red", "green"}, values(stored))
}

func (s *PgStoreSuite) TestConcurrentAppendsGetDistinctPositions() {
	// given
	base, err := s.store.Save(s.ctx, newOption(uuid.New(), "color", "v0"))
	s.Require().NoError(err)
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	// when
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.AddVariant(s.ctx, base.ID, db.OptionVariant{
				Token: uuid.New(),
				Value: fmt.Sprintf("v%d", i+1),
				Stock: 1,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// then
	for err := range errs {
		s.NoError(err)
	}
	want := make([]int32, writers+1)
	for i := range want {
		want[i] = int32(i)
	}
	s.Equal(want, s.positions(base.ID))
	stored, err := s.store.FindByID(s.ctx, base.ID)
	s.Require().NoError(err)
	s.Len(stored.Variants, writers+1)
	s.Equal("v0", stored.Variants[0].Value)
	s.Equal(int32(writers+1), stored.Version)
}

// positions returns the stored variant positions of an option in ascending order.
func (s *PgStoreSuite) positions(optionID uuid.UUID) []int32 {
	rows, err := s.dbPool.Query(s.ctx, "SELECT position FROM option_variants WHERE option_id = $1 ORDER BY position", optionID)
	s.Require().NoError(err)
	defer rows.Close()
	list := make([]int32, 0)
	for rows.Next() {
		var p int32
		s.Require().NoError(rows.Scan(&p))
		list = append(list, p)
	}
	s.Require().NoError(rows.Err())
	return list
}

func (s *PgStoreSuite) TestFindAllByParentAndDelete() {
	// given
	itemID := uuid.New()
	for _, name := range []string{"color", "size"} {
		_, err := s.store.Save(s.ctx, newOption(itemID, name, "a", "b"))
		s.Require().NoError(err)
	}
	other, err := s.store.Save(s.ctx, newOption(uuid.New(), "color", "a"))
	s.Require().NoError(err)

	// when
	all, err := s.store.FindAllByParent(s.ctx, itemID)

	// then
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("color", all[0].Name)
	s.Equal("size", all[1].Name)

	// when
	count, err := s.store.DeleteAllByParent(s.ctx, itemID)

	// then
	s.Require().NoError(err)
	s.Equal(int64(2), count)
	all, err = s.store.FindAllByParent(s.ctx, itemID)
	s.Require().NoError(err)
	s.Empty(all)
	var variants int
	s.Require().NoError(s.dbPool.QueryRow(s.ctx,
		"SELECT count(*) FROM option_variants v JOIN options o ON o.id = v.option_id WHERE o.item_id = $1", itemID).Scan(&variants))
	s.Zero(variants)
	_, err = s.store.FindByID(s.ctx, other.ID)
	s.NoError(err)
}

func (s *PgStoreSuite) TestWithinTransaction_Rollback() {
	// given
	itemID := uuid.New()
	boom := errors.New("boom")

	// when
	err := s.store.WithinTransaction(s.ctx, func(tx OptionStore) error {
		_, err := tx.Save(s.ctx, newOption(itemID, "color", "red"))
		s.Require().NoError(err)
		_, err = tx.FindByParentAndName(s.ctx, itemID, "color")
		s.Require().NoError(err)
		return boom
	})

	// then
	s.ErrorIs(err, boom)
	_, err = s.store.FindByParentAndName(s.ctx, itemID, "color")
	s.ErrorIs(err, optionerrors.ErrOptionNotFound)
}

func (s *PgStoreSuite) TestWithinTransaction_NestedJoins() {
	// given
	itemID := uuid.New()

	// when
	err := s.store.WithinTransaction(s.ctx, func(tx OptionStore) error {
		return tx.(Transactor).WithinTransaction(s.ctx, func(inner OptionStore) error {
			_, err := inner.Save(s.ctx, newOption(itemID, "color", "red"))
			return err
		})
	})

	// then
	s.Require().NoError(err)
	_, err = s.store.FindByParentAndName(s.ctx, itemID, "color")
	s.NoError(err)
}

func (s *PgStoreSuite) TestConcurrentCreatesOfOneName() {
	// given
	itemID := uuid.New()
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	// when
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Save(s.ctx, newOption(itemID, "color", "red"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// then
	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(s.T(), err, optionerrors.ErrUniqueViolation)
	}
	s.Equal(1, ok)
	all, err := s.store.FindAllByParent(s.ctx, itemID)
	require.NoError(s.T(), err)
	s.Len(all, 1)
}
