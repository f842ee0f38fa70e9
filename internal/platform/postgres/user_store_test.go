package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStoreGetByID(t *testing.T) {
	cols := []string{"id", "username", "email", "is_active", "is_superuser"}

	tests := []struct {
		name    string
		id      int64
		setup   func(mock sqlmock.Sqlmock)
		want    *domain.User
		wantErr error
	}{
		{
			name: "found",
			id:   1,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM users\s+WHERE id = \$1`).
					WithArgs(int64(1)).
					WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), "alice", "alice@example.com", true, false))
			},
			want: &domain.User{ID: 1, Username: "alice", Email: "alice@example.com", IsActive: true},
		},
		{
			name: "superuser flag",
			id:   9,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM users`).
					WithArgs(int64(9)).
					WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(9), "root", "root@example.com", true, true))
			},
			want: &domain.User{ID: 9, Username: "root", Email: "root@example.com", IsActive: true, IsSuperuser: true},
		},
		{
			name: "not found",
			id:   2,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM users`).WithArgs(int64(2)).WillReturnError(sql.ErrNoRows)
			},
			wantErr: store.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.setup(mock)

			got, err := NewPostgresUserStore(db, nil).GetByID(context.Background(), tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserStoreGetByIDDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM users`).WillReturnError(errors.New("connection refused"))

	_, err = NewPostgresUserStore(db, nil).GetByID(context.Background(), 1)

	require.Error(t, err)
	assert.False(t, store.IsNotFoundError(err))
}
