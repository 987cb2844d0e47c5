package documents

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/growthvault/internal/common"
	"github.com/dmitrijs2005/growthvault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	upsertQ = `(?s)^\s*INSERT\s+INTO\s+documents\s*\(user_id,\s*data,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*ON\s+CONFLICT\s*\(user_id\)\s*DO\s+UPDATE.*$`
	selectQ = `(?s)^\s*SELECT\s+data,\s*updated_at\s+FROM\s+documents\s+WHERE\s+user_id\s*=\s*\$1\s*$`
)

func TestPut(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(upsertQ).
		WithArgs("u1", `{"items":[]}`, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Put(context.Background(), &models.Document{UserID: "u1", Data: []byte(`{"items":[]}`), UpdatedAt: at})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPut_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(upsertQ).WillReturnError(errors.New("db down"))

	err := repo.Put(context.Background(), &models.Document{UserID: "u1", Data: []byte(`{}`)})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"data", "updated_at"}).AddRow(`{"itemCounter":3}`, at)
	mock.ExpectQuery(selectQ).WithArgs("u1").WillReturnRows(rows)

	doc, err := repo.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.UserID != "u1" || string(doc.Data) != `{"itemCounter":3}` || !doc.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).WithArgs("u1").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "u1")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGet_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).WithArgs("u1").WillReturnError(errors.New("db err"))

	_, err := repo.Get(context.Background(), "u1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
