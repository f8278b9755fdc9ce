package dto

import "github.com/noah-isme/sma-gradebook-api/internal/models"

// ReportRequest captures the export job payload.
type ReportRequest struct {
	Type      models.ReportType   `json:"type"`
	ClassID   string              `json:"classId"`
	TermID    string              `json:"termId"`
	StudentID *string             `json:"studentId,omitempty"`
	Format    models.ReportFormat `json:"format"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
