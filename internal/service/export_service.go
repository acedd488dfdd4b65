package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
	"github.com/seventic/ops-api/pkg/export"
)

// ExportFormat selects the output encoding.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportFile is a rendered export ready to stream to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders request listings into downloadable documents. The
// exported rows are exactly what the viewer sees on the dashboard: the same
// scoping and view selection applies.
type ExportService struct {
	dashboard *DashboardService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(dashboard *DashboardService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		dashboard: dashboard,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ExportRequests renders the viewer's dashboard slice in the given format.
func (s *ExportService) ExportRequests(ctx context.Context, viewer Viewer, view View, filter models.RequestFilter, format ExportFormat) (*ExportFile, error) {
	result, err := s.dashboard.Load(ctx, viewer, view, filter, SpecialFilters{}, true)
	if err != nil {
		return nil, err
	}

	dataset := requestsDataset(result.Requests)
	stamp := s.now().Format("2006-01-02")

	switch format {
	case ExportCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("requests-%s-%s.csv", view, stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case ExportPDF:
		data, err := s.pdf.Render(dataset, fmt.Sprintf("Requests - %s", view))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("requests-%s-%s.pdf", view, stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func requestsDataset(requests []models.Request) export.Dataset {
	headers := []string{"ID", "Title", "Type", "Status", "Mission", "Created By", "Assigned To", "Due Date", "Late"}
	rows := make([]map[string]string, 0, len(requests))
	for _, r := range requests {
		late := "no"
		if r.IsLate {
			late = "yes"
		}
		createdBy := r.CreatedByName
		if createdBy == "" {
			createdBy = r.CreatedBy
		}
		assignedTo := r.AssignedToName
		if assignedTo == "" {
			assignedTo = r.AssignedTo
		}
		rows = append(rows, map[string]string{
			"ID":          r.ID,
			"Title":       r.Title,
			"Type":        string(r.Type),
			"Status":      string(r.WorkflowStatus),
			"Mission":     r.MissionName,
			"Created By":  createdBy,
			"Assigned To": assignedTo,
			"Due Date":    r.DueDate.Format("2006-01-02"),
			"Late":        late,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
