package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/api/internal/content"
)

func TestWebsiteStoreCreateAndList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewWebsiteStore(db)

	mock.ExpectExec("INSERT INTO websites").
		WithArgs(sqlmock.AnyArg(), "user-1", "Bakery", "https://bakery.example", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	site, err := s.CreateWebsite(context.Background(), "user-1", " Bakery ", "https://bakery.example")
	require.NoError(t, err)
	assert.NotEmpty(t, site.ID)
	assert.Equal(t, "Bakery", site.Name)

	mock.ExpectQuery("SELECT id, user_id, name, url, created_at").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "url", "created_at"}).
			AddRow(site.ID, "user-1", "Bakery", "https://bakery.example", time.Now()))

	sites, err := s.ListWebsites(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, site.ID, sites[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebsiteStoreCreateRequiresName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewWebsiteStore(db).CreateWebsite(context.Background(), "user-1", "  ", "")
	require.ErrorIs(t, err, content.ErrValidation)
}

func TestWebsiteStoreGetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "url", "created_at"}))

	_, err = NewWebsiteStore(db).GetWebsite(context.Background(), "user-1", "site-x")
	require.ErrorIs(t, err, ErrNotFound)
}
