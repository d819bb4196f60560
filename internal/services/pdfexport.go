package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/shivamkumar9811/NoteRex/internal/domain"
)

// PDFService renders a note as a downloadable PDF.
type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

func (s *PDFService) Render(note domain.Note, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(note.Title, false)
	pdf.SetAuthor("NoteRex", false)
	pdf.AddPage()

	title := note.Title
	if strings.TrimSpace(title) == "" {
		title = "Study Notes"
	}

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 6, fmt.Sprintf("Source: %s", note.SourceType))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Created: %s", note.CreatedAt.Local().Format("02/01/2006 15:04")))
	pdf.Ln(12)

	s.writeSection(pdf, "Bullet Notes", note.SummaryFormats.BulletNotes, true)
	pdf.Ln(8)
	s.writeSection(pdf, "Topics", note.SummaryFormats.TopicWise, true)
	pdf.Ln(8)
	s.writeSection(pdf, "Key Takeaways", note.SummaryFormats.KeyTakeaways, true)
	pdf.Ln(8)
	s.writeSection(pdf, "Transcript", strings.Split(note.Transcript, "\n"), false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	return nil
}

func (s *PDFService) writeSection(pdf *gofpdf.Fpdf, title string, lines []string, bullet bool) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, title)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)

	wrote := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		text := line
		if bullet {
			text = fmt.Sprintf("- %s", line)
		}
		pdf.MultiCell(0, 6, text, "", "L", false)
		wrote = true
	}

	if !wrote {
		pdf.MultiCell(0, 6, "(empty)", "", "L", false)
	}
}
