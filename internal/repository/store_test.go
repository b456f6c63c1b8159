package repository

import (
	"context"
	"database/sql"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/study-space-booking/internal/booking"
	"github.com/iliyamo/study-space-booking/internal/model"
)

var storeNow = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

var reservationColumnNames = []string{"id", "user_id", "space_id", "start_time", "end_time", "purpose", "status",
	"confirmation_code", "created_at", "cancelled_at", "cancellation_reason"}

func newMockStore(t *testing.T, driver string, lockTimeout time.Duration) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, driver), lockTimeout), mock
}

func newStoreService(store booking.Store) *booking.Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return booking.NewService(store, booking.DefaultPolicy(),
		booking.WithClock(func() time.Time { return storeNow }),
		booking.WithLogger(logger))
}

func createRequest(spaceID uint64) booking.Request {
	start := storeNow.Add(24 * time.Hour)
	return booking.Request{
		SpaceID:   spaceID,
		StartTime: start.Format(time.RFC3339),
		EndTime:   start.Add(time.Hour).Format(time.RFC3339),
	}
}

// sqlmock collapses whitespace before matching, so the patterns below are
// written on one line.
func TestCreateLockOrderPostgres(t *testing.T) {
	store, mock := newMockStore(t, "postgres", 3*time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '3000ms'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE id = $1 FOR UPDATE`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	// lib/pq hands TIME columns back as time.Time on 0000-01-01; 24:00 rolls to the next day
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+spaceColumns+` FROM study_spaces WHERE id = $1 AND status <> $2 FOR UPDATE`)).
		WithArgs(3, model.SpaceStatusDeleted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "weekday_open", "weekday_close", "weekend_open", "weekend_close"}).
			AddRow(3, "Quiet room", model.SpaceStatusAvailable,
				time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(0, 1, 2, 0, 0, 0, 0, time.UTC),
				time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(0, 1, 2, 0, 0, 0, 0, time.UTC)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM reservations WHERE user_id = $1 AND status = $2 AND start_time > $3 FOR UPDATE`)).
		WithArgs(7, string(model.StatusConfirmed), storeNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100).AddRow(101))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM reservations WHERE user_id = $1 AND status = $2 AND start_time < $3 AND end_time > $4 AND id <> $5 ORDER BY start_time FOR UPDATE`)).
		WithArgs(7, string(model.StatusConfirmed), sqlmock.AnyArg(), sqlmock.AnyArg(), 0).
		WillReturnRows(sqlmock.NewRows(reservationColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM reservations WHERE space_id = $1 AND status = $2 AND start_time < $3 AND end_time > $4 AND id <> $5 ORDER BY start_time FOR UPDATE`)).
		WithArgs(3, string(model.StatusConfirmed), sqlmock.AnyArg(), sqlmock.AnyArg(), 0).
		WillReturnRows(sqlmock.NewRows(reservationColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM reservations WHERE confirmation_code = $1 LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO reservations (user_id, space_id, start_time, end_time, purpose, status, confirmation_code, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`)).
		WithArgs(7, 3, sqlmock.AnyArg(), sqlmock.AnyArg(), nil, string(model.StatusConfirmed), sqlmock.AnyArg(), storeNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`LEFT JOIN study_spaces s ON s.id = r.space_id`)).
		WillReturnError(sql.ErrConnDone)

	got, err := newStoreService(store).Create(context.Background(), 7, createRequest(3))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID != 42 {
		t.Errorf("ID = %d, want 42", got.ID)
	}
	if len(got.ConfirmationCode) != 10 {
		t.Errorf("confirmation code %q, want 10 characters", got.ConfirmationCode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateLockOrderMySQL(t *testing.T) {
	// sub-second timeouts round up to the one second InnoDB minimum
	store, mock := newMockStore(t, "mysql", 500*time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET SESSION innodb_lock_wait_timeout = 1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE id = ? FOR UPDATE`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM study_spaces WHERE id = ? AND status <> ? FOR UPDATE`)).
		WithArgs(3, model.SpaceStatusDeleted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "weekday_open", "weekday_close", "weekend_open", "weekend_close"}).
			AddRow(3, "Quiet room", model.SpaceStatusAvailable, []byte("00:00:00"), []byte("24:00:00"), []byte("00:00:00"), []byte("24:00:00")))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM reservations WHERE user_id = ? AND status = ? AND start_time > ? FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE user_id = ? AND status = ? AND start_time < ? AND end_time > ? AND id <> ? ORDER BY start_time FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows(reservationColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE space_id = ? AND status = ? AND start_time < ? AND end_time > ? AND id <> ? ORDER BY start_time FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows(reservationColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM reservations WHERE confirmation_code = ? LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectExec(regexp.QuoteMeta(`VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`LEFT JOIN study_spaces s ON s.id = r.space_id`)).
		WillReturnError(sql.ErrConnDone)

	got, err := newStoreService(store).Create(context.Background(), 7, createRequest(3))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID != 7 {
		t.Errorf("ID = %d, want 7", got.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateLockTimeoutRollsBack(t *testing.T) {
	store, mock := newMockStore(t, "postgres", time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '1000ms'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE id = $1 FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM study_spaces WHERE id = $1 AND status <> $2 FOR UPDATE`)).
		WillReturnError(&pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	_, err := newStoreService(store).Create(context.Background(), 7, createRequest(3))
	if got := booking.KindOf(err); got != booking.KindTransient {
		t.Fatalf("KindOf(err) = %q, want %q (err=%v)", got, booking.KindTransient, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateDeletedSpaceRollsBack(t *testing.T) {
	store, mock := newMockStore(t, "postgres", 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE id = $1 FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM study_spaces WHERE id = $1 AND status <> $2 FOR UPDATE`)).
		WithArgs(3, model.SpaceStatusDeleted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "weekday_open", "weekday_close", "weekend_open", "weekend_close"}))
	mock.ExpectRollback()

	_, err := newStoreService(store).Create(context.Background(), 7, createRequest(3))
	if got := booking.KindOf(err); got != booking.KindNotFound {
		t.Fatalf("KindOf(err) = %q, want %q (err=%v)", got, booking.KindNotFound, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCancelLocksReservationPostgres(t *testing.T) {
	store, mock := newMockStore(t, "postgres", 2*time.Second)
	start := storeNow.Add(48 * time.Hour)
	created := storeNow.Add(-time.Hour)
	cancelled := storeNow

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '2000ms'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM reservations WHERE id = $1 FOR UPDATE`)).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows(reservationColumnNames).
			AddRow(42, 7, 3, start, start.Add(time.Hour), nil, "Confirmed", "ABCDEFGHJK", created, nil, nil))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE reservations SET status = $1, cancelled_at = $2, cancellation_reason = $3 WHERE id = $4`)).
		WithArgs(string(model.StatusCancelled), storeNow, string(model.ReasonUserRequested), 42).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM reservations WHERE id = $1`)).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows(reservationColumnNames).
			AddRow(42, 7, 3, start, start.Add(time.Hour), nil, "Cancelled", "ABCDEFGHJK", created, cancelled, "User_Requested"))
	mock.ExpectCommit()

	got, err := newStoreService(store).Cancel(context.Background(), 42, booking.Actor{UserID: 7, Role: model.RoleStudent}, nil)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusCancelled)
	}
	if got.CancellationReason == nil || *got.CancellationReason != model.ReasonUserRequested {
		t.Errorf("CancellationReason = %v, want %q", got.CancellationReason, model.ReasonUserRequested)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

// TestConcurrentCreatesAgainstDatabase races real transactions on one
// space.  It needs a migrated Postgres database named by BOOKING_TEST_DSN.
func TestConcurrentCreatesAgainstDatabase(t *testing.T) {
	dsn := os.Getenv("BOOKING_TEST_DSN")
	if dsn == "" {
		t.Skip("BOOKING_TEST_DSN not set")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	suffix := time.Now().Format("150405.000000000")
	var campusID, buildingID, spaceID uint64
	mustGet := func(dest interface{}, q string, args ...interface{}) {
		t.Helper()
		if err := db.GetContext(ctx, dest, q, args...); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	mustGet(&campusID, `INSERT INTO campuses (name) VALUES ($1) RETURNING id`, "race "+suffix)
	mustGet(&buildingID, `INSERT INTO buildings (campus_id, name) VALUES ($1, $2) RETURNING id`, campusID, "race "+suffix)
	mustGet(&spaceID, `INSERT INTO study_spaces (building_id, name, weekday_open, weekday_close, weekend_open, weekend_close)
	                   VALUES ($1, $2, '00:00', '24:00', '00:00', '24:00') RETURNING id`, buildingID, "race "+suffix)

	const contenders = 8
	users := make([]uint64, contenders)
	for i := range users {
		email := strings.ReplaceAll("race-"+suffix, ".", "-") + "-" + string(rune('a'+i)) + "@example.test"
		mustGet(&users[i], `INSERT INTO users (email, full_name) VALUES ($1, 'Race') RETURNING id`, email)
	}
	defer func() {
		db.ExecContext(ctx, `DELETE FROM reservations WHERE space_id = $1`, spaceID)
		db.ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1)`, pq.Array(users))
		db.ExecContext(ctx, `DELETE FROM study_spaces WHERE id = $1`, spaceID)
		db.ExecContext(ctx, `DELETE FROM buildings WHERE id = $1`, buildingID)
		db.ExecContext(ctx, `DELETE FROM campuses WHERE id = $1`, campusID)
	}()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := booking.NewService(NewStore(db, 5*time.Second), booking.DefaultPolicy(), booking.WithLogger(logger))
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	req := booking.Request{SpaceID: spaceID, StartTime: start.Format(time.RFC3339), EndTime: start.Add(time.Hour).Format(time.RFC3339)}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
		conflicts int
	)
	for _, u := range users {
		wg.Add(1)
		go func(u uint64) {
			defer wg.Done()
			_, err := svc.Create(ctx, u, req)
			mu.Lock()
			defer mu.Unlock()
			switch booking.KindOf(err) {
			case "":
				confirmed++
			case booking.KindConflict:
				conflicts++
			default:
				t.Errorf("user %d: %v", u, err)
			}
		}(u)
	}
	wg.Wait()

	if confirmed != 1 || conflicts != contenders-1 {
		t.Fatalf("confirmed=%d conflicts=%d, want 1 and %d", confirmed, conflicts, contenders-1)
	}
}
