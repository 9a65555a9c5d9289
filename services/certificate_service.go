package services

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/anjiri1684/tutor_ledger/models"
	"github.com/anjiri1684/tutor_ledger/store"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

//go:embed templates/certificate.html
var certificateTemplate string

var certificateTmpl = template.Must(template.New("certificate").Parse(certificateTemplate))

type PDFRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

type FileUploader interface {
	Upload(ctx context.Context, data []byte, publicID string) (string, error)
}

// CertificateService issues a certificate each time a student completes
// another block of milestone lessons with the same teacher and language.
type CertificateService struct {
	store     store.Store
	renderer  PDFRenderer
	uploader  FileUploader
	milestone int
	log       *slog.Logger
}

func NewCertificateService(s store.Store, renderer PDFRenderer, up FileUploader, milestone int, log *slog.Logger) *CertificateService {
	if milestone <= 0 {
		milestone = 10
	}
	return &CertificateService{store: s, renderer: renderer, uploader: up, milestone: milestone, log: log}
}

// IssueIfEligible is called after a lesson completes. It returns nil when no
// new milestone was reached or the certificate already exists.
func (s *CertificateService) IssueIfEligible(ctx context.Context, lesson models.Lesson) (*models.Certificate, error) {
	if lesson.Status != models.LessonCompleted {
		return nil, nil
	}
	completed, err := s.store.ListLessons(ctx, store.LessonFilter{
		StudentID: &lesson.StudentID,
		TeacherID: &lesson.TeacherID,
		Statuses:  []models.LessonStatus{models.LessonCompleted},
	})
	if err != nil {
		return nil, wrap("count completed lessons", err)
	}
	count := 0
	for _, l := range completed {
		if l.Language == lesson.Language {
			count++
		}
	}
	if count == 0 || count%s.milestone != 0 {
		return nil, nil
	}

	student, err := s.store.GetUser(ctx, lesson.StudentID)
	if err != nil {
		return nil, wrap("certificate student", err)
	}
	teacher, err := s.store.GetTeacher(ctx, lesson.TeacherID)
	if err != nil {
		return nil, wrap("certificate teacher", err)
	}

	courseTitle := fmt.Sprintf("%s with %s - %d Sessions", lesson.Language, teacher.FullName, count)
	existing, err := s.store.ListCertificates(ctx, student.ID)
	if err != nil {
		return nil, wrap("list certificates", err)
	}
	for _, c := range existing {
		if c.CourseTitle == courseTitle {
			return nil, nil
		}
	}

	htmlData, err := renderCertificateHTML(student.FullName, teacher.FullName, courseTitle, time.Now())
	if err != nil {
		return nil, fmt.Errorf("render certificate html: %w", err)
	}
	pdf, err := s.renderer.Render(ctx, htmlData)
	if err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	url, err := s.uploader.Upload(ctx, pdf, fmt.Sprintf("certificates/%s_%s", student.ID, uuid.NewString()))
	if err != nil {
		return nil, fmt.Errorf("upload certificate: %w", err)
	}

	cert := models.Certificate{
		StudentID:      student.ID,
		TeacherID:      teacher.ID,
		Language:       lesson.Language,
		CourseTitle:    courseTitle,
		CertificateURL: url,
	}
	err = s.store.Atomic(ctx, func(tx store.Tx) error { return tx.CreateCertificate(ctx, &cert) })
	if err != nil {
		return nil, wrap("save certificate", err)
	}

	s.log.Info("✅ Generated and uploaded certificate",
		slog.String("course", courseTitle),
		slog.String("student_id", student.ID.String()))
	return &cert, nil
}

func (s *CertificateService) ListCertificates(ctx context.Context, studentID uuid.UUID) ([]models.Certificate, error) {
	certs, err := s.store.ListCertificates(ctx, studentID)
	return certs, wrap("list certificates", err)
}

func renderCertificateHTML(studentName, teacherName, courseTitle string, issued time.Time) (string, error) {
	data := struct {
		StudentName    string
		TeacherName    string
		CourseTitle    string
		CompletionDate string
	}{
		StudentName:    studentName,
		TeacherName:    teacherName,
		CourseTitle:    courseTitle,
		CompletionDate: issued.Format("January 2, 2006"),
	}

	var rendered bytes.Buffer
	if err := certificateTmpl.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

// ChromePDFRenderer prints HTML to PDF with a headless Chrome.
type ChromePDFRenderer struct{}

func (ChromePDFRenderer) Render(ctx context.Context, htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryUploader(cloudinaryURL string) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &CloudinaryUploader{cld: cld, folder: "tutor_ledger_certificates"}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, data []byte, publicID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := u.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     publicID,
		Folder:       u.folder,
		ResourceType: "raw",
	})
	if err != nil {
		return "", err
	}
	return result.SecureURL, nil
}
