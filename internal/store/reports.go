package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gradepaper/gradepaper/internal/model"
)

// ReportRow is a stored grading report with its listing columns.
type ReportRow struct {
	ID        int64     `json:"id"`
	SheetID   int64     `json:"sheet_id"`
	Student   string    `json:"student"`
	Percent   float64   `json:"percentage"`
	Grade     string    `json:"grade"`
	CreatedAt time.Time `json:"created_at"`

	Report *model.GradingReport `json:"report,omitempty"`
}

// SaveReport stores the grading report for an answer sheet. Regrading
// replaces the previous report wholesale.
func (s *Store) SaveReport(sheetID int64, report model.GradingReport) (int64, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO reports (sheet_id, student, percentage, grade, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(sheet_id) DO UPDATE SET
		   student = excluded.student,
		   percentage = excluded.percentage,
		   grade = excluded.grade,
		   payload = excluded.payload,
		   created_at = excluded.created_at`,
		sheetID, report.StudentInfo["name"], report.Percentage, report.Grade, string(data), time.Now(),
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRow(`SELECT id FROM reports WHERE sheet_id = ?`, sheetID).Scan(&id)
	return id, err
}

// GetReport returns a report by ID with its full payload, or nil when
// absent.
func (s *Store) GetReport(id int64) (*ReportRow, error) {
	return s.getReport(`SELECT id, sheet_id, student, percentage, grade, payload, created_at FROM reports WHERE id = ?`, id)
}

// GetReportForSheet returns the report for an answer sheet, or nil.
func (s *Store) GetReportForSheet(sheetID int64) (*ReportRow, error) {
	return s.getReport(`SELECT id, sheet_id, student, percentage, grade, payload, created_at FROM reports WHERE sheet_id = ?`, sheetID)
}

func (s *Store) getReport(query string, arg int64) (*ReportRow, error) {
	var r ReportRow
	var payload string
	err := s.db.QueryRow(query, arg).Scan(
		&r.ID, &r.SheetID, &r.Student, &r.Percent, &r.Grade, &payload, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report model.GradingReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("decode report %d: %w", r.ID, err)
	}
	r.Report = &report
	return &r, nil
}

// ListReports returns all reports, newest first, without payloads.
func (s *Store) ListReports() ([]ReportRow, error) {
	rows, err := s.db.Query(
		`SELECT id, sheet_id, student, percentage, grade, created_at FROM reports ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reports []ReportRow
	for rows.Next() {
		var r ReportRow
		if err := rows.Scan(&r.ID, &r.SheetID, &r.Student, &r.Percent, &r.Grade, &r.CreatedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// ExportReports returns every stored report with its full payload, for
// the export command.
func (s *Store) ExportReports() ([]model.GradingReport, error) {
	rows, err := s.db.Query(`SELECT id, payload FROM reports ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reports []model.GradingReport
	for rows.Next() {
		var id int64
		var payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var report model.GradingReport
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			return nil, fmt.Errorf("decode report %d: %w", id, err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
