package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/campusops/facultyhours/config"
	"github.com/campusops/facultyhours/errors"
	"github.com/campusops/facultyhours/report"
)

// ObjectPutter is the slice of the S3 API the sink needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ContactLinker writes the uploaded report URL back onto the CRM
// contact. Satisfied by *directory.Client.
type ContactLinker interface {
	SearchContactByEmail(ctx context.Context, email string) (string, error)
	UpdateContactProperty(ctx context.Context, contactID, property, value string) error
}

// S3Sink uploads one CSV object per report subject under a
// deterministic key derived from the idempotence key, so re-running a
// period overwrites instead of duplicating. After each upload it links
// the object URL onto the matching CRM contact; subjects missing from
// the CRM are collected into a local side report, never a failure.
type S3Sink struct {
	client   ObjectPutter
	bucket   string
	region   string
	crm      ContactLinker // nil disables the CRM link-back
	property string
	sideDir  string
	log      *zap.SugaredLogger
}

// NewS3Sink builds the sink from configuration. Credentials flow in
// through cfg; nothing is read from ambient process state here.
func NewS3Sink(ctx context.Context, cfg config.S3Config, crm ContactLinker, crmProperty, sideDir string, log *zap.SugaredLogger) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3.bucket is not configured")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws configuration")
	}

	return &S3Sink{
		client:   s3.NewFromConfig(awsCfg),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		crm:      crm,
		property: crmProperty,
		sideDir:  sideDir,
		log:      log,
	}, nil
}

// Name implements dispatch.Handler.
func (s *S3Sink) Name() string { return "s3" }

// notFoundContact records a subject whose report was uploaded but who
// has no CRM contact to link it to.
type notFoundContact struct {
	Email string
	Name  string
	URL   string
}

// Deliver implements dispatch.Handler. A failed upload for one subject
// does not stop the remaining subjects; all failures are joined into
// the handler's error.
func (s *S3Sink) Deliver(ctx context.Context, doc *report.Document, key string) error {
	var deliveryErr error
	var notFound []notFoundContact

	for _, entry := range doc.Entries {
		if err := ctx.Err(); err != nil {
			return errors.Join(deliveryErr, err)
		}

		body, err := renderEntryCSV(entry)
		if err != nil {
			deliveryErr = errors.Join(deliveryErr,
				errors.Wrapf(err, "rendering report for %s", entry.DisplayName()))
			continue
		}

		objectKey := fmt.Sprintf("%s/%s.csv", key, entryObjectID(entry))
		if doc.Period.IsAll() {
			objectKey = fmt.Sprintf("%s/%s/%s.csv", key, entryPeriod(doc, entry), entryObjectID(entry))
		}
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(objectKey),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("text/csv"),
		})
		if err != nil {
			deliveryErr = errors.Join(deliveryErr,
				errors.Wrapf(err, "uploading report for %s", entry.DisplayName()))
			continue
		}

		objectURL := s.objectURL(objectKey)
		if s.log != nil {
			s.log.Infow("Uploaded faculty report",
				"person", entry.DisplayName(), "key", objectKey)
		}

		if missing := s.linkContact(ctx, entry, objectURL); missing != nil {
			notFound = append(notFound, *missing)
		}
	}

	if len(notFound) > 0 {
		if err := s.writeNotFoundReport(notFound); err != nil && s.log != nil {
			s.log.Warnw("Failed to write not-found contacts report", "error", err)
		}
	}

	return deliveryErr
}

// linkContact writes the report URL onto the subject's CRM contact.
// Returns the not-found record when the subject has an email but no
// CRM contact; CRM update errors are logged and also treated as
// not-found so the side report keeps the URL for manual follow-up.
func (s *S3Sink) linkContact(ctx context.Context, entry report.ResolvedReport, objectURL string) *notFoundContact {
	if s.crm == nil || s.property == "" {
		return nil
	}
	email := entry.Email()
	if email == "" {
		return &notFoundContact{Name: entry.DisplayName(), URL: objectURL}
	}

	contactID, err := s.crm.SearchContactByEmail(ctx, email)
	if err != nil {
		if s.log != nil {
			s.log.Warnw("CRM search failed", "email", email, "error", err)
		}
		return &notFoundContact{Email: email, Name: entry.DisplayName(), URL: objectURL}
	}
	if contactID == "" {
		return &notFoundContact{Email: email, Name: entry.DisplayName(), URL: objectURL}
	}

	if err := s.crm.UpdateContactProperty(ctx, contactID, s.property, objectURL); err != nil {
		if s.log != nil {
			s.log.Warnw("CRM update failed", "contact_id", contactID, "error", err)
		}
		return &notFoundContact{Email: email, Name: entry.DisplayName(), URL: objectURL}
	}
	return nil
}

func (s *S3Sink) objectURL(objectKey string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, objectKey)
}

// writeNotFoundReport saves the subjects that could not be linked in
// the CRM, timestamped so successive runs do not clobber each other's
// audit trail.
func (s *S3Sink) writeNotFoundReport(contacts []notFoundContact) error {
	if err := os.MkdirAll(s.sideDir, 0o755); err != nil {
		return errors.Wrap(err, "creating side report directory")
	}

	filename := fmt.Sprintf("not_found_contacts_%s.csv", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(s.sideDir, filename)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"email", "name", "s3_url"}); err != nil {
		return err
	}
	for _, c := range contacts {
		if err := w.Write([]string{c.Email, c.Name, c.URL}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "writing not-found contacts report")
	}
	if s.log != nil {
		s.log.Infow("Saved not-found contacts report", "count", len(contacts), "path", path)
	}
	return nil
}
