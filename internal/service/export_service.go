package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/pkg/export"
	"github.com/noah-isme/sma-gradebook-api/pkg/storage"
)

type reportCardAssembler interface {
	AssembleReportCard(ctx context.Context, classID, studentID, termID string) (*models.ReportCard, error)
}

type classStatisticsProvider interface {
	CalculateClassStatistics(ctx context.Context, classID, termID string) (*models.ClassStatistics, error)
}

type rosterReader interface {
	ListStudents(ctx context.Context, classID string) ([]models.Student, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders report datasets to CSV or PDF and persists the
// files behind signed download tokens.
type ExportService struct {
	cards   reportCardAssembler
	stats   classStatisticsProvider
	roster  rosterReader
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(cards reportCardAssembler, stats classStatisticsProvider, roster rosterReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		cards:   cards,
		stats:   stats,
		roster:  roster,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	termPart := sanitizeFilename(job.Params.TermID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), termPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeReportCards:
		return s.buildReportCardDataset(ctx, job.Params)
	case models.ReportTypeClassSummary:
		return s.buildClassSummaryDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildReportCardDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	var students []models.Student
	if params.StudentID != nil && *params.StudentID != "" {
		students = []models.Student{{ID: *params.StudentID}}
	} else {
		roster, err := s.roster.ListStudents(ctx, params.ClassID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		students = roster
	}

	headers := []string{"Student", "Subject", "Percentage", "Grade", "Grade Points", "Credits", "Passing"}
	rows := make([]map[string]string, 0, len(students))
	for _, student := range students {
		card, err := s.cards.AssembleReportCard(ctx, params.ClassID, student.ID, params.TermID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, subject := range card.Subjects {
			rows = append(rows, map[string]string{
				"Student":      studentLabel(student),
				"Subject":      subject.SubjectID,
				"Percentage":   formatPercentage(subject.Percentage, subject.Ungraded),
				"Grade":        subject.FinalGrade,
				"Grade Points": fmt.Sprintf("%.2f", subject.GradePoints),
				"Credits":      fmt.Sprintf("%.1f", subject.Credits),
				"Passing":      formatBool(subject.IsPassing),
			})
		}
		rows = append(rows, map[string]string{
			"Student":      studentLabel(student),
			"Subject":      "TERM GPA",
			"Percentage":   "",
			"Grade":        "",
			"Grade Points": fmt.Sprintf("%.2f", card.GPA),
			"Credits":      fmt.Sprintf("%.1f", card.EarnedCredits),
			"Passing":      "",
		})
	}
	title := fmt.Sprintf("Report Cards %s", params.TermID)
	dataset := export.Dataset{
		Headers:  headers,
		Rows:     rows,
		Subtitle: fmt.Sprintf("Class %s, term %s", params.ClassID, params.TermID),
		Numeric:  []string{"Percentage", "Grade Points", "Credits"},
	}
	return dataset, title, nil
}

func (s *ExportService) buildClassSummaryDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	stats, err := s.stats.CalculateClassStatistics(ctx, params.ClassID, params.TermID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := []map[string]string{
		{"Metric": "Average Grade", "Value": fmt.Sprintf("%.2f", stats.AverageGrade)},
		{"Metric": "Pass Rate (%)", "Value": fmt.Sprintf("%.2f", stats.PassRate)},
		{"Metric": "Students Graded", "Value": fmt.Sprintf("%d", stats.TotalStudents)},
	}
	dataset := export.Dataset{
		Headers:  []string{"Metric", "Value"},
		Rows:     rows,
		Subtitle: fmt.Sprintf("Class %s, term %s", params.ClassID, params.TermID),
		Numeric:  []string{"Value"},
	}
	title := fmt.Sprintf("Class Summary %s", params.TermID)
	return dataset, title, nil
}

func studentLabel(student models.Student) string {
	if student.FullName != "" {
		return student.FullName
	}
	return student.ID
}

func formatPercentage(pct float64, ungraded bool) string {
	if ungraded {
		return "ungraded"
	}
	return fmt.Sprintf("%.2f", pct)
}

func formatBool(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
