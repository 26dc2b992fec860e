package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxReceiptSize is the per-file size ceiling for receipts
const DefaultMaxReceiptSize int64 = 10 << 20

// AllowedReceiptTypes maps accepted MIME types to their canonical extension
var AllowedReceiptTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// ReceiptFile is a candidate upload before it is stored
type ReceiptFile struct {
	Filename string
	Content  []byte
	// Size is the size the client declared. It may exceed len(Content)
	// when a part was refused or cut off before being read in full.
	Size int64
}

func (f ReceiptFile) size() int64 {
	if n := int64(len(f.Content)); n > f.Size {
		return n
	}
	return f.Size
}

// AcceptedReceipt is a file that passed the policy
type AcceptedReceipt struct {
	ReceiptFile
	MimeType string
}

// RejectedReceipt names a file that failed the policy and why
type RejectedReceipt struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// DocumentInspector opens a document to confirm it is readable
type DocumentInspector interface {
	PageCount(content []byte) (int, error)
}

// ReceiptPolicy enforces type and size rules at attachment time
type ReceiptPolicy struct {
	MaxSize int64
	// PDFs is optional; when set, PDF receipts must open and have pages
	PDFs DocumentInspector
}

// NewReceiptPolicy creates a policy with the given size ceiling.
// A non-positive maxSize selects DefaultMaxReceiptSize.
func NewReceiptPolicy(maxSize int64, pdfs DocumentInspector) *ReceiptPolicy {
	if maxSize <= 0 {
		maxSize = DefaultMaxReceiptSize
	}
	return &ReceiptPolicy{MaxSize: maxSize, PDFs: pdfs}
}

// Check splits a batch into accepted and rejected files. One bad file
// never rejects the others.
func (p *ReceiptPolicy) Check(files []ReceiptFile) ([]AcceptedReceipt, []RejectedReceipt) {
	var accepted []AcceptedReceipt
	var rejected []RejectedReceipt

	for _, f := range files {
		mimeType, err := p.checkOne(f)
		if err != nil {
			rejected = append(rejected, RejectedReceipt{Filename: f.Filename, Reason: err.Error()})
			continue
		}
		accepted = append(accepted, AcceptedReceipt{ReceiptFile: f, MimeType: mimeType})
	}

	return accepted, rejected
}

func (p *ReceiptPolicy) checkOne(f ReceiptFile) (string, error) {
	if strings.TrimSpace(f.Filename) == "" {
		return "", fmt.Errorf("filename is required")
	}
	if f.size() > p.MaxSize {
		return "", fmt.Errorf("file exceeds maximum size of %d MB", p.MaxSize>>20)
	}
	if len(f.Content) == 0 {
		return "", fmt.Errorf("file is empty")
	}

	detected := mimetype.Detect(f.Content)
	var mimeType string
	for allowed := range AllowedReceiptTypes {
		if detected.Is(allowed) {
			mimeType = allowed
			break
		}
	}
	if mimeType == "" {
		return "", fmt.Errorf("unsupported file type %s (allowed: PDF, JPEG, PNG)", detected.String())
	}

	if mimeType == "application/pdf" && p.PDFs != nil {
		pages, err := p.PDFs.PageCount(f.Content)
		if err != nil {
			return "", fmt.Errorf("PDF could not be opened")
		}
		if pages == 0 {
			return "", fmt.Errorf("PDF has no pages")
		}
	}

	return mimeType, nil
}

// SafeFilename strips directories and replaces characters that do not
// belong in a storage key
func SafeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "receipt"
	}
	return out
}
