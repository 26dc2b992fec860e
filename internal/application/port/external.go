package port

import (
	"context"

	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/summary"
)

// Notifier delivers a plain-text message to a speaker
type Notifier interface {
	NotifySpeaker(ctx context.Context, speakerID, message string) error
}

// ReportExporter renders a request and its summary into a downloadable file
type ReportExporter interface {
	ContentType() string
	FileExtension() string
	Export(ctx context.Context, req *entity.TravelSupportRequest, s *summary.Summary) ([]byte, error)
}
