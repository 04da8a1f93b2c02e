package repository

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

var profileColumnNames = []string{"user_id", "bio", "avg_rating", "total_jobs", "updated_at"}

func meanAggregate(ratings []int) model.RatingAggregate {
	if len(ratings) == 0 {
		return model.RatingAggregate{AvgRating: model.DefaultAvgRating}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return model.RatingAggregate{AvgRating: float64(sum) / float64(len(ratings)), TotalJobs: len(ratings)}
}

func newTestReview() *model.Review {
	return &model.Review{
		ID:           "r1",
		BookingID:    "b1",
		CustomerID:   "cust",
		TechnicianID: "tech",
		Rating:       5,
		Text:         "great",
		CreatedAt:    time.Now().UTC(),
	}
}

func expectProfileLock(mock sqlmock.Sqlmock) {
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO technician_profiles")).
		WithArgs("tech").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("tech").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("tech"))
}

func TestReviewRepository_CreateWithRating(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	expectProfileLock(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WithArgs("r1", "b1", "cust", "tech", 5, "great", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT rating FROM reviews")).
		WithArgs("tech").
		WillReturnRows(sqlmock.NewRows([]string{"rating"}).AddRow(5).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE technician_profiles")).
		WithArgs(4.5, 2, sqlmock.AnyArg(), "tech").
		WillReturnRows(sqlmock.NewRows(profileColumnNames).AddRow("tech", "", 4.5, 2, now))
	mock.ExpectCommit()

	repo := NewReviewRepository(db)
	profile, err := repo.CreateWithRating(testContext(t), newTestReview(), meanAggregate)
	if err != nil {
		t.Fatalf("CreateWithRating() error = %v", err)
	}
	if profile.AvgRating != 4.5 || profile.TotalJobs != 2 {
		t.Errorf("CreateWithRating() profile = %+v", profile)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReviewRepository_CreateWithRating_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	expectProfileLock(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "reviews_booking_id_key"})
	mock.ExpectRollback()

	repo := NewReviewRepository(db)
	_, err := repo.CreateWithRating(testContext(t), newTestReview(), meanAggregate)
	if !errors.Is(err, model.ErrDuplicateReview) {
		t.Fatalf("CreateWithRating() error = %v, want ErrDuplicateReview", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReviewRepository_CreateWithRating_OtherErrorRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	expectProfileLock(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	repo := NewReviewRepository(db)
	_, err := repo.CreateWithRating(testContext(t), newTestReview(), meanAggregate)
	if err == nil || errors.Is(err, model.ErrDuplicateReview) {
		t.Fatalf("CreateWithRating() error = %v, want a non-duplicate error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTechnicianRepository_RecomputeRating_NoReviews(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	expectProfileLock(mock)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT rating FROM reviews")).
		WithArgs("tech").
		WillReturnRows(sqlmock.NewRows([]string{"rating"}))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE technician_profiles")).
		WithArgs(model.DefaultAvgRating, 0, sqlmock.AnyArg(), "tech").
		WillReturnRows(sqlmock.NewRows(profileColumnNames).AddRow("tech", "", 0.0, 0, now))
	mock.ExpectCommit()

	repo := NewTechnicianRepository(db)
	profile, err := repo.RecomputeRating(testContext(t), "tech", meanAggregate)
	if err != nil {
		t.Fatalf("RecomputeRating() error = %v", err)
	}
	if profile.AvgRating != model.DefaultAvgRating || profile.TotalJobs != 0 {
		t.Errorf("RecomputeRating() profile = %+v", profile)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
