// Package bookingtest provides in-memory fakes for exercising the booking
// engine without a database.  Store transactions serialize on a single
// mutex, which stands in for the row locks a real database would take.
package bookingtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/study-space-booking/internal/booking"
	"github.com/iliyamo/study-space-booking/internal/model"
)

// Store is an in-memory booking.Store.
type Store struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	spaces       map[uint64]model.Space
	summaries    map[uint64]model.SpaceSummary
	users        map[uint64]model.UserContact
	reservations map[uint64]model.Reservation
	codes        map[string]uint64
	nextID       uint64

	// LockErr, when set, is returned by every Lock* and *ForUpdate call.
	LockErr error
	// EnrichErr, when set, is returned by FindReservationWithSpace.
	EnrichErr error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		spaces:       make(map[uint64]model.Space),
		summaries:    make(map[uint64]model.SpaceSummary),
		users:        make(map[uint64]model.UserContact),
		reservations: make(map[uint64]model.Reservation),
		codes:        make(map[string]uint64),
	}
}

var _ booking.Store = (*Store)(nil)

// OpenAllDay returns operating hours covering the whole day, every day.
func OpenAllDay() model.OperatingHours {
	w := model.HoursWindow{Open: 0, Close: 24 * 60, Configured: true}
	return model.OperatingHours{Weekday: w, Weekend: w}
}

// AddSpace registers sp and a matching summary for enrichment.
func (s *Store) AddSpace(sp model.Space) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaces[sp.ID] = sp
	s.summaries[sp.ID] = model.SpaceSummary{
		ID:             sp.ID,
		Name:           sp.Name,
		OperatingHours: sp.OperatingHours,
		BuildingName:   "Main Library",
		CampusName:     "Central",
	}
}

// AddUser registers a user's notification contact.
func (s *Store) AddUser(u model.UserContact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// Put stores r as committed and returns its ID.
func (s *Store) Put(r model.Reservation) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	s.reservations[r.ID] = r
	s.codes[r.ConfirmationCode] = r.ID
	return r.ID
}

// Reservation returns the committed row with the given id.
func (s *Store) Reservation(id uint64) (model.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	return r, ok
}

// Reservations returns every committed row ordered by ID.
func (s *Store) Reservations() []model.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindUserContact implements the notification directory.
func (s *Store) FindUserContact(_ context.Context, id uint64) (model.UserContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.UserContact{}, booking.ErrNotFound
	}
	return u, nil
}

func (s *Store) Begin(ctx context.Context) (booking.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	return &tx{s: s, pending: make(map[uint64]model.Reservation)}, nil
}

func (s *Store) FindSpaceByID(_ context.Context, id uint64) (model.Space, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.spaces[id]
	if !ok || sp.Status == model.SpaceStatusDeleted {
		return model.Space{}, booking.ErrNotFound
	}
	return sp, nil
}

func (s *Store) ConfirmationCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.codes[code]
	return ok, nil
}

func (s *Store) FindReservationWithSpace(_ context.Context, id uint64) (model.EnrichedReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EnrichErr != nil {
		return model.EnrichedReservation{}, s.EnrichErr
	}
	r, ok := s.reservations[id]
	if !ok {
		return model.EnrichedReservation{}, booking.ErrNotFound
	}
	return s.enrichLocked(r), nil
}

func (s *Store) enrichLocked(r model.Reservation) model.EnrichedReservation {
	out := model.EnrichedReservation{Reservation: r, DurationMinutes: r.DurationMinutes()}
	if sum, ok := s.summaries[r.SpaceID]; ok {
		out.Space = &sum
	}
	return out
}

func (s *Store) ListReservationsByUser(_ context.Context, userID uint64, f booking.ListFilter) ([]model.EnrichedReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []model.Reservation
	for _, r := range s.reservations {
		if r.UserID == userID && f.Matches(r) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartTime.After(rows[j].StartTime) })
	if f.Offset >= len(rows) {
		rows = nil
	} else {
		rows = rows[f.Offset:]
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	out := make([]model.EnrichedReservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.enrichLocked(r))
	}
	return out, nil
}

func (s *Store) CountReservationsByUser(_ context.Context, userID uint64, f booking.ListFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reservations {
		if r.UserID == userID && f.Matches(r) {
			n++
		}
	}
	return n, nil
}

// tx buffers writes until Commit.  It holds Store.txMu for its lifetime.
type tx struct {
	s       *Store
	pending map[uint64]model.Reservation
	done    bool
}

var errTxDone = errors.New("bookingtest: transaction already finished")

func (t *tx) lockErr() error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.LockErr
}

// view returns the row as seen by this transaction.
func (t *tx) view(id uint64) (model.Reservation, bool) {
	if r, ok := t.pending[id]; ok {
		return r, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	r, ok := t.s.reservations[id]
	return r, ok
}

func (t *tx) all() []model.Reservation {
	t.s.mu.RLock()
	out := make([]model.Reservation, 0, len(t.s.reservations)+len(t.pending))
	for id, r := range t.s.reservations {
		if _, shadowed := t.pending[id]; !shadowed {
			out = append(out, r)
		}
	}
	t.s.mu.RUnlock()
	for _, r := range t.pending {
		out = append(out, r)
	}
	return out
}

func (t *tx) LockRequester(_ context.Context, userID uint64) error {
	if err := t.lockErr(); err != nil {
		return err
	}
	if userID == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *tx) LockSpace(ctx context.Context, spaceID uint64) (model.Space, error) {
	if err := t.lockErr(); err != nil {
		return model.Space{}, err
	}
	return t.s.FindSpaceByID(ctx, spaceID)
}

func (t *tx) CountActiveFutureReservations(_ context.Context, userID uint64, now time.Time) (int, error) {
	n := 0
	for _, r := range t.all() {
		if r.UserID == userID && r.Status == model.StatusConfirmed && r.StartTime.After(now) {
			n++
		}
	}
	return n, nil
}

func (t *tx) overlapping(match func(model.Reservation) bool, start, end time.Time, excludeID uint64) []model.Reservation {
	var out []model.Reservation
	for _, r := range t.all() {
		if r.ID != excludeID && match(r) && r.Status == model.StatusConfirmed && r.Overlaps(start, end) {
			out = append(out, r)
		}
	}
	return out
}

func (t *tx) FindOverlappingBySpace(_ context.Context, spaceID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	if err := t.lockErr(); err != nil {
		return nil, err
	}
	return t.overlapping(func(r model.Reservation) bool { return r.SpaceID == spaceID }, start, end, excludeID), nil
}

func (t *tx) FindOverlappingByUser(_ context.Context, userID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	if err := t.lockErr(); err != nil {
		return nil, err
	}
	return t.overlapping(func(r model.Reservation) bool { return r.UserID == userID }, start, end, excludeID), nil
}

func (t *tx) InsertReservation(_ context.Context, r *model.Reservation) error {
	for _, other := range t.pending {
		if other.ConfirmationCode == r.ConfirmationCode {
			return booking.ErrDuplicate
		}
	}
	t.s.mu.Lock()
	if _, taken := t.s.codes[r.ConfirmationCode]; taken {
		t.s.mu.Unlock()
		return booking.ErrDuplicate
	}
	t.s.nextID++
	r.ID = t.s.nextID
	t.s.mu.Unlock()
	t.pending[r.ID] = *r
	return nil
}

func (t *tx) FindReservationForUpdate(_ context.Context, id uint64) (model.Reservation, error) {
	if err := t.lockErr(); err != nil {
		return model.Reservation{}, err
	}
	r, ok := t.view(id)
	if !ok {
		return model.Reservation{}, booking.ErrNotFound
	}
	return r, nil
}

func (t *tx) UpdateReservationStatus(_ context.Context, id uint64, status model.Status, at time.Time, reason *model.CancellationReason) (model.Reservation, error) {
	r, ok := t.view(id)
	if !ok {
		return model.Reservation{}, booking.ErrNotFound
	}
	r.Status = status
	if status == model.StatusCancelled {
		when := at
		r.CancelledAt = &when
		r.CancellationReason = reason
	}
	t.pending[id] = r
	return r, nil
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.s.mu.Lock()
	for id, r := range t.pending {
		t.s.reservations[id] = r
		t.s.codes[r.ConfirmationCode] = id
	}
	t.s.mu.Unlock()
	t.s.txMu.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.s.txMu.Unlock()
	return nil
}
