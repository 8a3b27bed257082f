package service

import (
	"context"
	"testing"
	"time"

	"collections-engine/internal/domain"
)

func newReportEnv() (*ReportService, *fakeStore, *fakeClock) {
	store := newFakeStore()
	clock := &fakeClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	svc := NewReportService(store, nil, nil, nil, clock)
	return svc, store, clock
}

func seedReportTask(store *fakeStore, id string, tp domain.CollectionsType, status domain.TaskStatus, risk domain.RiskLevel, amount float64, due time.Time) {
	store.put(&domain.Task{
		ID: id, Version: 1, CustomerID: "c-" + id,
		Type: tp, Status: status, RiskLevel: risk,
		Amount: amount, DueDate: due,
		CreatedAt: due.AddDate(0, 0, -30),
	})
}

func TestStats(t *testing.T) {
	svc, store, clock := newReportEnv()
	due := clock.now.AddDate(0, 0, 10)

	seedReportTask(store, "1", domain.TypePaymentReminder, domain.StatusPending, domain.RiskLow, 100, due)
	seedReportTask(store, "2", domain.TypePaymentReminder, domain.StatusInProgress, domain.RiskHigh, 200, due)
	seedReportTask(store, "3", domain.TypeLegalAction, domain.StatusCompleted, domain.RiskCritical, 300, due)

	// archived cases are out of scope
	store.put(&domain.Task{ID: "4", Version: 1, CustomerID: "c4", Type: domain.TypeOther, Status: domain.StatusCompleted, Amount: 999, DueDate: due, Archived: true})

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}
	if stats.TotalAmount != 600 {
		t.Fatalf("expected amount 600, got %g", stats.TotalAmount)
	}
	if stats.ByType["payment_reminder"] != 2 || stats.ByType["legal_action"] != 1 {
		t.Fatalf("byType wrong: %+v", stats.ByType)
	}
	if stats.ByStatus["pending"] != 1 || stats.ByStatus["completed"] != 1 {
		t.Fatalf("byStatus wrong: %+v", stats.ByStatus)
	}
	if stats.ByRiskLevel["high"] != 1 {
		t.Fatalf("byRiskLevel wrong: %+v", stats.ByRiskLevel)
	}
}

func TestAgingBucketName_Boundaries(t *testing.T) {
	cases := []struct {
		days int
		want string
	}{
		{-5, "current"},
		{0, "current"},
		{1, "1-30"},
		{30, "1-30"},
		{31, "31-60"},
		{60, "31-60"},
		{61, "61-90"},
		{90, "61-90"},
		{91, "91-120"},
		{120, "91-120"},
		{121, "over_120"},
		{365, "over_120"},
	}
	for _, tc := range cases {
		if got := agingBucketName(tc.days); got != tc.want {
			t.Errorf("days=%d: expected %s, got %s", tc.days, tc.want, got)
		}
	}
}

func TestAging(t *testing.T) {
	svc, store, clock := newReportEnv()
	now := clock.now

	seedReportTask(store, "current", domain.TypeOther, domain.StatusPending, domain.RiskLow, 100, now.AddDate(0, 0, 10))
	seedReportTask(store, "b30", domain.TypeOther, domain.StatusPending, domain.RiskLow, 200, now.AddDate(0, 0, -15))
	seedReportTask(store, "b60", domain.TypeOther, domain.StatusPending, domain.RiskLow, 300, now.AddDate(0, 0, -45))
	seedReportTask(store, "b-old", domain.TypeOther, domain.StatusPending, domain.RiskLow, 400, now.AddDate(0, 0, -200))
	// completed cases are excluded from aging entirely
	seedReportTask(store, "done", domain.TypeOther, domain.StatusCompleted, domain.RiskLow, 999, now.AddDate(0, 0, -45))

	buckets, err := svc.Aging(context.Background())
	if err != nil {
		t.Fatalf("aging: %v", err)
	}

	if len(buckets) != len(AgingBucketNames) {
		t.Fatalf("expected %d buckets, got %d", len(AgingBucketNames), len(buckets))
	}
	if b := buckets["current"]; b.Count != 1 || b.Amount != 100 {
		t.Fatalf("current bucket wrong: %+v", b)
	}
	if b := buckets["1-30"]; b.Count != 1 || b.Amount != 200 {
		t.Fatalf("1-30 bucket wrong: %+v", b)
	}
	if b := buckets["31-60"]; b.Count != 1 || b.Amount != 300 {
		t.Fatalf("31-60 bucket wrong: %+v", b)
	}
	if b := buckets["over_120"]; b.Count != 1 || b.Amount != 400 {
		t.Fatalf("over_120 bucket wrong: %+v", b)
	}
	if b := buckets["61-90"]; b.Count != 0 {
		t.Fatalf("61-90 bucket should be empty: %+v", b)
	}
}

func TestRates(t *testing.T) {
	svc, store, clock := newReportEnv()
	now := clock.now
	future := now.AddDate(0, 0, 10)

	seedReportTask(store, "1", domain.TypeOther, domain.StatusCompleted, domain.RiskLow, 100, future)
	seedReportTask(store, "2", domain.TypeOther, domain.StatusPending, domain.RiskHigh, 100, now.AddDate(0, 0, -5))
	seedReportTask(store, "3", domain.TypeOther, domain.StatusInProgress, domain.RiskCritical, 100, future)
	seedReportTask(store, "4", domain.TypeOther, domain.StatusPending, domain.RiskLow, 100, future)

	rates, err := svc.Rates(context.Background())
	if err != nil {
		t.Fatalf("rates: %v", err)
	}

	if rates.RecoveryRate != 25 {
		t.Fatalf("expected recovery 25%%, got %g", rates.RecoveryRate)
	}
	if rates.OverdueRate != 25 {
		t.Fatalf("expected overdue 25%%, got %g", rates.OverdueRate)
	}
	if rates.HighRiskRate != 50 {
		t.Fatalf("expected high-risk 50%%, got %g", rates.HighRiskRate)
	}
}

func TestRates_EmptyStore(t *testing.T) {
	svc, _, _ := newReportEnv()
	rates, err := svc.Rates(context.Background())
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	if rates.RecoveryRate != 0 || rates.OverdueRate != 0 || rates.HighRiskRate != 0 {
		t.Fatalf("empty store should yield zero rates: %+v", rates)
	}
}

func TestRenderWeeklyWorkbook(t *testing.T) {
	stats := &TaskStats{
		Total:       3,
		TotalAmount: 600,
		ByType:      map[string]int64{"payment_reminder": 2, "legal_action": 1},
		ByRiskLevel: map[string]int64{"low": 2, "high": 1},
	}
	aging := map[string]AgingBucket{"current": {Count: 2, Amount: 300}, "1-30": {Count: 1, Amount: 300}}
	rates := &CollectionRates{RecoveryRate: 33.3, OverdueRate: 10, HighRiskRate: 33.3}

	data, err := renderWeeklyWorkbook(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), stats, aging, rates, 5)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected a non-empty workbook")
	}
	// xlsx is a zip archive
	if string(data[:2]) != "PK" {
		t.Fatalf("expected zip magic, got %q", data[:2])
	}
}
