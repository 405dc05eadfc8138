// Package reports archives reconciliation run reports to Google Cloud
// Storage as JSON, one object per run.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/clearspend/reconciler/internal/reconcile"
)

// GCSArchiver writes run reports to a GCS bucket. It assumes Application
// Default Credentials are configured (gcloud auth application-default login).
type GCSArchiver struct {
	client *storage.Client
	bucket string
}

var _ reconcile.ReportArchiver = (*GCSArchiver)(nil)

// NewGCSArchiver creates an archiver writing into the given bucket.
func NewGCSArchiver(ctx context.Context, bucket string) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSArchiver: creating storage client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: bucket}, nil
}

// Close releases the underlying storage client.
func (a *GCSArchiver) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// ArchiveRunReport uploads one run report as JSON under
// reconciliation-reports/<date>/<user_id>/<run_id>.json.
func (a *GCSArchiver) ArchiveRunReport(ctx context.Context, report reconcile.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("ArchiveRunReport: marshaling report: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := a.client.Bucket(a.bucket).Object(ObjectName(report))
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("ArchiveRunReport: writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("ArchiveRunReport: finalizing upload: %w", err)
	}

	return nil
}

// parseGCSURI splits a gs://bucket/path/to/object URI into bucket and object
// name. Both parts must be non-empty.
func parseGCSURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}

	return parts[0], parts[1], nil
}

// FetchRunReport downloads and decodes a previously archived report from the
// given GCS URI, e.g. gs://bucket/reconciliation-reports/2025-03-01/user-1/run.json.
func FetchRunReport(ctx context.Context, gcsURI string) (*reconcile.RunReport, error) {
	bucket, object, err := parseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchRunReport: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchRunReport: reading object %s: %w", gcsURI, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchRunReport: reading bytes: %w", err)
	}

	var report reconcile.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("FetchRunReport: decoding report: %w", err)
	}

	return &report, nil
}

// ObjectName builds the object path for a run report. Reports are grouped by
// finish date, then user.
func ObjectName(report reconcile.RunReport) string {
	return fmt.Sprintf("reconciliation-reports/%s/%s/%s.json",
		report.FinishedAt.UTC().Format("2006-01-02"),
		report.UserID,
		report.RunID,
	)
}
