package booking

import (
	"context"

	"github.com/iliyamo/study-space-booking/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListQuery selects a page of a user's reservations.  An empty Scope
// returns both the upcoming and the past page.
type ListQuery struct {
	Scope  Scope
	Status model.Status
	Page   int
	Limit  int
}

// Statistics summarises a user's reservation history.
type Statistics struct {
	Total     int `json:"total_bookings"`
	Upcoming  int `json:"upcoming_count"`
	Past      int `json:"past_count"`
	Cancelled int `json:"cancelled_count"`
}

// Pagination describes the page returned by List.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ReservationList is the result of List.  Upcoming or Past is nil when
// the query was scoped to the other half.
type ReservationList struct {
	Upcoming   []model.EnrichedReservation `json:"upcoming"`
	Past       []model.EnrichedReservation `json:"past"`
	Statistics Statistics                  `json:"statistics"`
	Pagination Pagination                  `json:"pagination"`
}

// List returns the requested page of userID's reservations together with
// counts over the whole history.
func (s *Service) List(ctx context.Context, userID uint64, q ListQuery) (ReservationList, error) {
	if q.Scope != ScopeAll && q.Scope != ScopeUpcoming && q.Scope != ScopePast {
		msg := "type must be upcoming or past"
		return ReservationList{}, validationError(msg, []string{msg})
	}
	if q.Status != "" {
		switch q.Status {
		case model.StatusConfirmed, model.StatusCancelled, model.StatusCompleted, model.StatusNoShow:
		default:
			msg := "status must be one of Confirmed, Cancelled, Completed, No_Show"
			return ReservationList{}, validationError(msg, []string{msg})
		}
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	now := s.now().UTC()
	base := ListFilter{Status: q.Status, Now: now, Limit: limit, Offset: (page - 1) * limit}

	var out ReservationList
	var err error
	if q.Scope != ScopePast {
		f := base
		f.Scope = ScopeUpcoming
		if out.Upcoming, err = s.store.ListReservationsByUser(ctx, userID, f); err != nil {
			return ReservationList{}, storeError("list upcoming reservations", err)
		}
		if out.Upcoming == nil {
			out.Upcoming = []model.EnrichedReservation{}
		}
	}
	if q.Scope != ScopeUpcoming {
		f := base
		f.Scope = ScopePast
		if out.Past, err = s.store.ListReservationsByUser(ctx, userID, f); err != nil {
			return ReservationList{}, storeError("list past reservations", err)
		}
		if out.Past == nil {
			out.Past = []model.EnrichedReservation{}
		}
	}

	counts := []struct {
		dst *int
		f   ListFilter
	}{
		{&out.Statistics.Total, ListFilter{Now: now}},
		{&out.Statistics.Upcoming, ListFilter{Scope: ScopeUpcoming, Now: now}},
		{&out.Statistics.Past, ListFilter{Scope: ScopePast, Now: now}},
		{&out.Statistics.Cancelled, ListFilter{Status: model.StatusCancelled, Now: now}},
	}
	for _, c := range counts {
		if *c.dst, err = s.store.CountReservationsByUser(ctx, userID, c.f); err != nil {
			return ReservationList{}, storeError("count reservations", err)
		}
	}

	out.Pagination = Pagination{
		Page:       page,
		Limit:      limit,
		Total:      out.Statistics.Total,
		TotalPages: (out.Statistics.Total + limit - 1) / limit,
	}
	return out, nil
}
