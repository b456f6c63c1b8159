package repository

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/iliyamo/study-space-booking/internal/booking"
	"github.com/iliyamo/study-space-booking/internal/model"
)

func TestFilterClause(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("UTC+2", 7200))
	tests := []struct {
		name      string
		filter    booking.ListFilter
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:      "all",
			filter:    booking.ListFilter{Now: now},
			wantWhere: " WHERE r.user_id = ?",
			wantArgs:  []interface{}{uint64(7)},
		},
		{
			name:      "upcoming",
			filter:    booking.ListFilter{Scope: booking.ScopeUpcoming, Now: now},
			wantWhere: " WHERE r.user_id = ? AND r.start_time > ? AND r.status = ?",
			wantArgs:  []interface{}{uint64(7), now.UTC(), model.StatusConfirmed},
		},
		{
			name:      "past cancelled",
			filter:    booking.ListFilter{Scope: booking.ScopePast, Status: model.StatusCancelled, Now: now},
			wantWhere: " WHERE r.user_id = ? AND (r.start_time <= ? OR r.status <> ?) AND r.status = ?",
			wantArgs:  []interface{}{uint64(7), now.UTC(), model.StatusConfirmed, model.StatusCancelled},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := filterClause(7, tt.filter)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestEnrichedRowToModel(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	base := model.Reservation{ID: 3, UserID: 7, SpaceID: 1, StartTime: start, EndTime: start.Add(90 * time.Minute)}

	bare := enrichedRow{Reservation: base}.toModel()
	if bare.Space != nil {
		t.Errorf("Space = %+v, want nil when the space row is missing", bare.Space)
	}
	if bare.DurationMinutes != 90 {
		t.Errorf("DurationMinutes = %d, want 90", bare.DurationMinutes)
	}

	full := enrichedRow{
		Reservation:  base,
		SpaceRef:     sql.NullInt64{Int64: 1, Valid: true},
		SpaceName:    sql.NullString{String: "Quiet Room", Valid: true},
		Floor:        sql.NullInt64{Int64: 2, Valid: true},
		BuildingID:   sql.NullInt64{Int64: 4, Valid: true},
		BuildingName: sql.NullString{String: "Library", Valid: true},
		CampusID:     sql.NullInt64{Int64: 5, Valid: true},
		CampusName:   sql.NullString{String: "North", Valid: true},
	}.toModel()
	want := &model.SpaceSummary{ID: 1, Name: "Quiet Room", Floor: 2, BuildingID: 4, BuildingName: "Library", CampusID: 5, CampusName: "North"}
	if !reflect.DeepEqual(full.Space, want) {
		t.Errorf("Space = %+v, want %+v", full.Space, want)
	}
}
