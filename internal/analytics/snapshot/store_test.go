package snapshot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/postgres"
	"github.com/DATA-DOG/go-sqlmock"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s := NewStore(postgres.NewFromDB(db))
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s, mock
}

func TestSave(t *testing.T) {
	s, mock := newStoreWithMock(t)
	mock.ExpectExec("INSERT INTO analytics_snapshots").
		WithArgs(sqlmock.AnyArg(), time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.Save(context.Background(), analytics.AggregatedStats{TotalMatches: 5}); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLatestEmpty(t *testing.T) {
	s, mock := newStoreWithMock(t)
	mock.ExpectQuery("SELECT data, captured_at FROM analytics_snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"data", "captured_at"}))

	snap, err := s.Latest(context.Background())
	if err != nil || snap != nil {
		t.Fatalf("Latest() = %v, %v", snap, err)
	}
}

func TestListSkipsCorruptRows(t *testing.T) {
	s, mock := newStoreWithMock(t)
	good, _ := json.Marshal(analytics.AggregatedStats{TotalMatches: 9})
	now := time.Now()
	mock.ExpectQuery("SELECT data, captured_at FROM analytics_snapshots").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"data", "captured_at"}).
			AddRow(good, now).
			AddRow([]byte("{broken"), now))

	snaps, err := s.List(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].Stats.TotalMatches != 9 {
		t.Errorf("List() = %+v", snaps)
	}
}

func TestPrune(t *testing.T) {
	s, mock := newStoreWithMock(t)
	mock.ExpectExec("DELETE FROM analytics_snapshots WHERE captured_at").
		WithArgs(time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.Prune(context.Background(), 24*time.Hour)
	if err != nil || n != 3 {
		t.Fatalf("Prune() = %d, %v", n, err)
	}
}
