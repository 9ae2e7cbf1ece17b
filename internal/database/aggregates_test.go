package database

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

// Backfill must subtract an aggregated match from the career tables in
// the same transaction that clears its flag; otherwise replaying the
// window double-counts every row.
func TestResetAggregatedSinceSubtractsCareerRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("creating mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT match_id, game_type FROM matches").
		WithArgs(7).
		WillReturnRows(pgxmock.NewRows([]string{"match_id", "game_type"}).
			AddRow("match-1", "competitive"))

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(matchLockKey("match-1")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT stats_aggregated FROM matches").
		WithArgs("match-1").
		WillReturnRows(pgxmock.NewRows([]string{"stats_aggregated"}).AddRow(true))

	// competitive buckets as ranked, then the all bucket, each subtracted.
	for _, class := range []string{"ranked", "all"} {
		mock.ExpectExec("INSERT INTO player_damage_stats").
			WithArgs("match-1", class, -1).
			WillReturnResult(pgxmock.NewResult("INSERT", 2))
		mock.ExpectExec("INSERT INTO player_weapon_stats").
			WithArgs("match-1", class, -1).
			WillReturnResult(pgxmock.NewResult("INSERT", 3))
		mock.ExpectExec("INSERT INTO player_advanced_career_stats").
			WithArgs("match-1", class, -1).
			WillReturnResult(pgxmock.NewResult("INSERT", 2))
	}

	mock.ExpectExec("UPDATE matches").
		WithArgs("match-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	db := &postgresDB{pool: mock}
	reset, err := db.ResetAggregatedSince(context.Background(), 7)
	if err != nil {
		t.Fatalf("ResetAggregatedSince: %v", err)
	}
	if reset != 1 {
		t.Errorf("expected 1 match reset, got %d", reset)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// A match whose flag cleared between the window scan and the lock must
// contribute nothing: no subtraction, no flag write, zero count.
func TestResetAggregatedSinceSkipsUnaggregatedMatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("creating mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT match_id, game_type FROM matches").
		WithArgs(30).
		WillReturnRows(pgxmock.NewRows([]string{"match_id", "game_type"}).
			AddRow("match-2", "official"))

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(matchLockKey("match-2")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT stats_aggregated FROM matches").
		WithArgs("match-2").
		WillReturnRows(pgxmock.NewRows([]string{"stats_aggregated"}).AddRow(false))
	mock.ExpectCommit()

	db := &postgresDB{pool: mock}
	reset, err := db.ResetAggregatedSince(context.Background(), 30)
	if err != nil {
		t.Fatalf("ResetAggregatedSince: %v", err)
	}
	if reset != 0 {
		t.Errorf("expected no matches reset, got %d", reset)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
