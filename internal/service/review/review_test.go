package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

// MockBookingRepository は予約の参照のみを提供するモックです
type MockBookingRepository struct {
	bookings map[string]model.Booking
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return errors.New("not implemented")
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &b, nil
}

func (m *MockBookingRepository) List(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	return nil, errors.New("not implemented")
}

func (m *MockBookingRepository) UpdateStatusIfMatch(ctx context.Context, id string, from, to model.BookingStatus, now time.Time) (*model.Booking, error) {
	return nil, errors.New("not implemented")
}

func (m *MockBookingRepository) CancelStalePending(ctx context.Context, now time.Time) (int64, error) {
	return 0, errors.New("not implemented")
}

func (m *MockBookingRepository) GetTechnicianStats(ctx context.Context, technicianID string) (*model.TechnicianStats, error) {
	return nil, errors.New("not implemented")
}

// MockRatingStore はレビューと技術者プロフィールを保持するモックです
// ReviewRepository と TechnicianRepository の両方を満たします
type MockRatingStore struct {
	mu       sync.Mutex
	reviews  map[string]model.Review
	profiles map[string]*model.TechnicianProfile
}

func newMockRatingStore() *MockRatingStore {
	return &MockRatingStore{
		reviews:  make(map[string]model.Review),
		profiles: make(map[string]*model.TechnicianProfile),
	}
}

func (m *MockRatingStore) CreateWithRating(ctx context.Context, review *model.Review, aggregate model.RatingAggregateFunc) (*model.TechnicianProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[review.BookingID]; ok {
		return nil, model.ErrDuplicateReview
	}
	m.reviews[review.BookingID] = *review
	return m.recomputeLocked(review.TechnicianID, aggregate), nil
}

func (m *MockRatingStore) GetByBookingID(ctx context.Context, bookingID string) (*model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[bookingID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &r, nil
}

func (m *MockRatingStore) ListByTechnician(ctx context.Context, technicianID string) ([]model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Review, 0)
	for _, r := range m.reviews {
		if r.TechnicianID == technicianID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockRatingStore) GetProfile(ctx context.Context, userID string) (*model.TechnicianProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *MockRatingStore) RecomputeRating(ctx context.Context, technicianID string, aggregate model.RatingAggregateFunc) (*model.TechnicianProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recomputeLocked(technicianID, aggregate), nil
}

func (m *MockRatingStore) recomputeLocked(technicianID string, aggregate model.RatingAggregateFunc) *model.TechnicianProfile {
	ratings := make([]int, 0)
	for _, r := range m.reviews {
		if r.TechnicianID == technicianID {
			ratings = append(ratings, r.Rating)
		}
	}
	result := aggregate(ratings)
	p, ok := m.profiles[technicianID]
	if !ok {
		p = &model.TechnicianProfile{UserID: technicianID}
		m.profiles[technicianID] = p
	}
	p.AvgRating = result.AvgRating
	p.TotalJobs = result.TotalJobs
	copied := *p
	return &copied
}

// recordingNotifier は Notify されたイベントを記録します
type recordingNotifier struct {
	mu     sync.Mutex
	events []model.NotificationEvent
}

func (n *recordingNotifier) Notify(ctx context.Context, event model.NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, seg := xray.BeginSegment(context.Background(), t.Name())
	t.Cleanup(func() { seg.Close(nil) })
	return ctx
}

var customer = model.Identity{UserID: "cust", Role: model.RoleCustomer}

func newTestService(store *MockRatingStore, notifier *recordingNotifier) *Service {
	bookings := &MockBookingRepository{bookings: map[string]model.Booking{
		"done1":   {ID: "done1", CustomerID: "cust", TechnicianID: "tech", Status: model.BookingStatusCompleted},
		"done2":   {ID: "done2", CustomerID: "cust", TechnicianID: "tech", Status: model.BookingStatusCompleted},
		"pending": {ID: "pending", CustomerID: "cust", TechnicianID: "tech", Status: model.BookingStatusPending},
	}}
	return NewService(bookings, store, store, notifier)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		wantAvg float64
		wantN   int
	}{
		{name: "レビューなしは既定値", ratings: nil, wantAvg: model.DefaultAvgRating, wantN: 0},
		{name: "一件", ratings: []int{5}, wantAvg: 5.0, wantN: 1},
		{name: "割り切れる", ratings: []int{4, 5}, wantAvg: 4.5, wantN: 2},
		{name: "切り上げ", ratings: []int{5, 5, 4}, wantAvg: 4.7, wantN: 3},
		{name: "切り捨て", ratings: []int{5, 4, 4}, wantAvg: 4.3, wantN: 3},
		{name: "ちょうど半分は切り上げ", ratings: []int{5, 4, 4, 4}, wantAvg: 4.3, wantN: 4},
		{name: "2.25は2.3", ratings: []int{1, 2, 3, 3}, wantAvg: 2.3, wantN: 4},
		{name: "すべて最低評価", ratings: []int{1, 1, 1}, wantAvg: 1.0, wantN: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.ratings)
			if got.AvgRating != tt.wantAvg || got.TotalJobs != tt.wantN {
				t.Errorf("Aggregate(%v) = %+v, want {%v %v}", tt.ratings, got, tt.wantAvg, tt.wantN)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name      string
		actor     model.Identity
		bookingID string
		rating    int
		wantErr   error
	}{
		{name: "完了済み予約に評価5", actor: customer, bookingID: "done1", rating: 5},
		{name: "存在しない予約", actor: customer, bookingID: "missing", rating: 5, wantErr: model.ErrNotFound},
		{name: "技術者はレビューできない", actor: model.Identity{UserID: "tech", Role: model.RoleTechnician}, bookingID: "done1", rating: 5, wantErr: model.ErrUnauthorized},
		{name: "他の顧客はレビューできない", actor: model.Identity{UserID: "cust2", Role: model.RoleCustomer}, bookingID: "done1", rating: 5, wantErr: model.ErrUnauthorized},
		{name: "未完了の予約", actor: customer, bookingID: "pending", rating: 5, wantErr: model.ErrValidation},
		{name: "評価が範囲外", actor: customer, bookingID: "done1", rating: 6, wantErr: model.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockRatingStore()
			notifier := &recordingNotifier{}
			service := newTestService(store, notifier)

			got, err := service.Create(testContext(t), tt.actor, tt.bookingID, tt.rating, "great job")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
				}
				if len(store.reviews) != 0 {
					t.Errorf("persisted %d reviews on failure", len(store.reviews))
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if got.Review.Rating != tt.rating || got.Review.TechnicianID != "tech" {
				t.Errorf("Create() review = %+v", got.Review)
			}
			if got.Technician.AvgRating != 5.0 || got.Technician.TotalJobs != 1 {
				t.Errorf("Create() technician = %+v, want 5.0/1", got.Technician)
			}

			// 呼び出しが戻った時点でプロフィールが更新されている
			profile, err := store.GetProfile(testContext(t), "tech")
			if err != nil {
				t.Fatalf("GetProfile() error = %v", err)
			}
			if profile.AvgRating != 5.0 || profile.TotalJobs != 1 {
				t.Errorf("profile = %+v, want 5.0/1", profile)
			}
			if len(notifier.events) != 1 || notifier.events[0].Type != model.NotificationTypeReviewReceived || notifier.events[0].RecipientID != "tech" {
				t.Errorf("notifications = %+v, want one REVIEW_RECEIVED to tech", notifier.events)
			}
		})
	}
}

func TestService_CreateDuplicate(t *testing.T) {
	store := newMockRatingStore()
	service := newTestService(store, &recordingNotifier{})
	ctx := testContext(t)

	if _, err := service.Create(ctx, customer, "done1", 4, ""); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	if _, err := service.Create(ctx, customer, "done1", 2, ""); !errors.Is(err, model.ErrDuplicateReview) {
		t.Errorf("second Create() error = %v, want ErrDuplicateReview", err)
	}
}

func TestService_CreateConcurrentSubmissions(t *testing.T) {
	store := newMockRatingStore()
	service := newTestService(store, &recordingNotifier{})
	ctx := testContext(t)

	const submissions = 8
	errs := make([]error, submissions)
	var wg sync.WaitGroup
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Create(ctx, customer, "done1", 1+i%5, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, model.ErrDuplicateReview):
		default:
			t.Errorf("submission %d error = %v", i, err)
		}
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}
	if len(store.reviews) != 1 {
		t.Errorf("persisted %d reviews, want 1", len(store.reviews))
	}
}

func TestService_RatingAcrossReviews(t *testing.T) {
	store := newMockRatingStore()
	service := newTestService(store, &recordingNotifier{})
	ctx := testContext(t)

	if _, err := service.Create(ctx, customer, "done1", 5, ""); err != nil {
		t.Fatalf("Create(done1) error = %v", err)
	}
	got, err := service.Create(ctx, customer, "done2", 4, "")
	if err != nil {
		t.Fatalf("Create(done2) error = %v", err)
	}
	if got.Technician.AvgRating != 4.5 || got.Technician.TotalJobs != 2 {
		t.Errorf("technician = %+v, want 4.5/2", got.Technician)
	}

	view, err := service.Technician(ctx, "tech")
	if err != nil {
		t.Fatalf("Technician() error = %v", err)
	}
	if len(view.Reviews) != 2 || view.Profile.AvgRating != 4.5 {
		t.Errorf("Technician() = %+v", view)
	}
}

func TestService_RecomputeRating(t *testing.T) {
	store := newMockRatingStore()
	store.profiles["tech"] = &model.TechnicianProfile{UserID: "tech", AvgRating: 3.7, TotalJobs: 9}
	service := newTestService(store, &recordingNotifier{})

	if _, err := service.RecomputeRating(testContext(t), customer, "tech"); !errors.Is(err, model.ErrUnauthorized) {
		t.Errorf("RecomputeRating() as customer error = %v, want ErrUnauthorized", err)
	}

	// レビューがなければ既定値に戻る
	got, err := service.RecomputeRating(testContext(t), model.Identity{UserID: "admin", Role: model.RoleAdmin}, "tech")
	if err != nil {
		t.Fatalf("RecomputeRating() error = %v", err)
	}
	if got.AvgRating != model.DefaultAvgRating || got.TotalJobs != 0 {
		t.Errorf("RecomputeRating() = %+v, want default/0", got)
	}
}
