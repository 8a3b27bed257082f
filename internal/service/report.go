package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"collections-engine/internal/clients"
	"collections-engine/internal/domain"
	"collections-engine/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const (
	reportSetKey = "report_ids"
	reportTTL    = 7 * 24 * time.Hour
)

// ReportUploader stores a rendered workbook and hands back a temporary URL.
type ReportUploader interface {
	UploadXLSX(ctx context.Context, fileName string, data []byte) (string, error)
	GetTemporaryURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ReportNotifier announces a finished report to connected staff.
type ReportNotifier interface {
	NotifyReportReady(ctx context.Context, reportID, url, fileName string)
}

// ReportService serves the read-only reporting surface and the weekly report
// job. Report status records live in Redis under a TTL plus an index set, so
// staff can list recent reports without touching the case store.
type ReportService struct {
	store    TaskStore
	redis    *clients.RedisClient
	uploader ReportUploader
	notifier ReportNotifier
	clock    Clock
}

func NewReportService(store TaskStore, redis *clients.RedisClient, uploader ReportUploader, notifier ReportNotifier, clock Clock) *ReportService {
	if clock == nil {
		clock = SystemClock()
	}
	return &ReportService{
		store:    store,
		redis:    redis,
		uploader: uploader,
		notifier: notifier,
		clock:    clock,
	}
}

type TaskStats struct {
	Total       int64            `json:"total"`
	TotalAmount float64          `json:"total_amount"`
	ByType      map[string]int64 `json:"by_type"`
	ByRiskLevel map[string]int64 `json:"by_risk_level"`
	ByStatus    map[string]int64 `json:"by_status"`
}

// Stats aggregates live (non-archived) case counts by type, risk level, and
// status, grouped store-side.
func (s *ReportService) Stats(ctx context.Context) (*TaskStats, error) {
	archived := false
	f := repository.TaskFilter{Archived: &archived}

	total, err := s.store.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	totalAmount, err := s.store.SumAmount(ctx, f)
	if err != nil {
		return nil, err
	}
	byType, err := s.store.GroupCount(ctx, "type", f)
	if err != nil {
		return nil, err
	}
	byRisk, err := s.store.GroupCount(ctx, "risk_level", f)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.store.GroupCount(ctx, "status", f)
	if err != nil {
		return nil, err
	}

	return &TaskStats{
		Total:       total,
		TotalAmount: totalAmount,
		ByType:      byType,
		ByRiskLevel: byRisk,
		ByStatus:    byStatus,
	}, nil
}

type AgingBucket struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// AgingBucketNames fixes the reporting order of the day-overdue ranges.
var AgingBucketNames = []string{"current", "1-30", "31-60", "61-90", "91-120", "over_120"}

// Aging groups open cases into day-overdue buckets.
func (s *ReportService) Aging(ctx context.Context) (map[string]AgingBucket, error) {
	archived := false
	completed := domain.StatusCompleted
	tasks, err := s.store.List(ctx, repository.TaskFilter{Archived: &archived, NotStatus: &completed})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	buckets := make(map[string]AgingBucket, len(AgingBucketNames))
	for _, name := range AgingBucketNames {
		buckets[name] = AgingBucket{}
	}
	for _, t := range tasks {
		name := agingBucketName(t.DaysOverdue(now))
		b := buckets[name]
		b.Count++
		b.Amount += t.Amount
		buckets[name] = b
	}
	return buckets, nil
}

func agingBucketName(daysOverdue int) string {
	switch {
	case daysOverdue <= 0:
		return "current"
	case daysOverdue <= 30:
		return "1-30"
	case daysOverdue <= 60:
		return "31-60"
	case daysOverdue <= 90:
		return "61-90"
	case daysOverdue <= 120:
		return "91-120"
	default:
		return "over_120"
	}
}

type CollectionRates struct {
	RecoveryRate float64 `json:"recovery_rate"`
	OverdueRate  float64 `json:"overdue_rate"`
	HighRiskRate float64 `json:"high_risk_rate"`
}

// Rates computes recovery (completed share), overdue, and high-risk
// percentages over all non-archived cases.
func (s *ReportService) Rates(ctx context.Context) (*CollectionRates, error) {
	archived := false
	f := repository.TaskFilter{Archived: &archived}

	total, err := s.store.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &CollectionRates{}, nil
	}

	byStatus, err := s.store.GroupCount(ctx, "status", f)
	if err != nil {
		return nil, err
	}
	byRisk, err := s.store.GroupCount(ctx, "risk_level", f)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	overdueFilter := f
	overdueFilter.OverdueAsOf = &now
	overdue, err := s.store.Count(ctx, overdueFilter)
	if err != nil {
		return nil, err
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	return &CollectionRates{
		RecoveryRate: pct(byStatus[string(domain.StatusCompleted)]),
		OverdueRate:  pct(overdue),
		HighRiskRate: pct(byRisk[string(domain.RiskHigh)] + byRisk[string(domain.RiskCritical)]),
	}, nil
}

type ReportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Created  time.Time `json:"created_at"`
}

func (s *ReportService) saveStatus(ctx context.Context, st *ReportStatus) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, st.Key, string(data), reportTTL); err != nil {
		log.Printf("[reports] cache status %s failed: %v", st.Key, err)
		return
	}
	_ = s.redis.SAdd(ctx, reportSetKey, st.Key)
}

// StartWeeklyReport kicks off report generation in the background and
// returns its tracking key immediately.
func (s *ReportService) StartWeeklyReport(ctx context.Context) (string, error) {
	reportID := fmt.Sprintf("reports:%s", uuid.NewString())
	created := s.clock.Now()
	s.saveStatus(ctx, &ReportStatus{Key: reportID, Type: "weekly", Progress: 0, Created: created})

	go s.runWeeklyReport(context.Background(), reportID, created)
	return reportID, nil
}

// RunWeeklyReport is the weekly job body; it generates synchronously so a
// failed run leaves no dangling in-progress status past its tick.
func (s *ReportService) RunWeeklyReport(ctx context.Context) {
	reportID := fmt.Sprintf("reports:%s", uuid.NewString())
	s.runWeeklyReport(ctx, reportID, s.clock.Now())
}

func (s *ReportService) runWeeklyReport(ctx context.Context, reportID string, created time.Time) {
	status := &ReportStatus{Key: reportID, Type: "weekly", Progress: 0, Created: created}

	stats, err := s.Stats(ctx)
	if err != nil {
		log.Printf("[reports] weekly stats failed: %v", err)
		return
	}
	aging, err := s.Aging(ctx)
	if err != nil {
		log.Printf("[reports] weekly aging failed: %v", err)
		return
	}
	rates, err := s.Rates(ctx)
	if err != nil {
		log.Printf("[reports] weekly rates failed: %v", err)
		return
	}

	weekAgo := created.AddDate(0, 0, -7)
	newCases, err := s.store.Count(ctx, repository.TaskFilter{CreatedAfter: &weekAgo})
	if err != nil {
		log.Printf("[reports] weekly new-case count failed: %v", err)
		return
	}

	status.Progress = 50
	s.saveStatus(ctx, status)

	data, err := renderWeeklyWorkbook(created, stats, aging, rates, newCases)
	if err != nil {
		log.Printf("[reports] weekly workbook failed: %v", err)
		return
	}

	status.Progress = 95
	s.saveStatus(ctx, status)

	fileName := fmt.Sprintf("collections_weekly_%s.xlsx", created.Format("20060102"))
	if s.uploader == nil {
		return
	}
	key, err := s.uploader.UploadXLSX(ctx, fileName, data)
	if err != nil {
		log.Printf("[reports] weekly upload failed: %v", err)
		return
	}
	url, err := s.uploader.GetTemporaryURL(ctx, key, reportTTL)
	if err != nil {
		log.Printf("[reports] weekly presign failed: %v", err)
		return
	}

	status.FileURL = &url
	status.Progress = 100
	s.saveStatus(ctx, status)

	if s.notifier != nil {
		s.notifier.NotifyReportReady(ctx, reportID, url, fileName)
	}
}

func renderWeeklyWorkbook(asOf time.Time, stats *TaskStats, aging map[string]AgingBucket, rates *CollectionRates, newCases int64) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Weekly"
	f.SetSheetName(f.GetSheetName(0), sheet)

	row := 1
	set := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
	line := func(vals ...any) {
		for i, v := range vals {
			set(i+1, v)
		}
		row++
	}

	line("Collections weekly report", asOf.Format("2006-01-02"))
	line()
	line("Open cases", stats.Total)
	line("Outstanding amount", stats.TotalAmount)
	line("New cases this week", newCases)
	line("Recovery rate %", rates.RecoveryRate)
	line("Overdue rate %", rates.OverdueRate)
	line("High risk rate %", rates.HighRiskRate)
	line()

	line("By type")
	for _, key := range sortedKeys(stats.ByType) {
		line(key, stats.ByType[key])
	}
	line()

	line("By risk level")
	for _, key := range sortedKeys(stats.ByRiskLevel) {
		line(key, stats.ByRiskLevel[key])
	}
	line()

	line("Aging", "Count", "Amount")
	for _, name := range AgingBucketNames {
		b := aging[name]
		line(name, b.Count, b.Amount)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetReports lists cached report statuses, newest first.
func (s *ReportService) GetReports(ctx context.Context) ([]ReportStatus, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	keys, err := s.redis.SMembers(ctx, reportSetKey)
	if err != nil {
		return nil, fmt.Errorf("list report keys: %w", err)
	}

	var statuses []ReportStatus
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key)
		if err != nil {
			continue
		}
		var st ReportStatus
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			continue
		}
		statuses = append(statuses, st)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})
	return statuses, nil
}

func (s *ReportService) GetReport(ctx context.Context, reportID string) (*ReportStatus, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	data, err := s.redis.Get(ctx, reportID)
	if err != nil {
		return nil, &domain.NotFoundError{Resource: "report", ID: reportID}
	}
	var st ReportStatus
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("parse report status: %w", err)
	}
	return &st, nil
}
