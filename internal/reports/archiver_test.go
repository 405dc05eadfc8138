package reports

import (
	"testing"
	"time"

	"github.com/clearspend/reconciler/internal/reconcile"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "valid",
			uri:        "gs://my-bucket/reconciliation-reports/2025-03-01/user-1/run.json",
			wantBucket: "my-bucket",
			wantObject: "reconciliation-reports/2025-03-01/user-1/run.json",
		},
		{name: "missing scheme", uri: "my-bucket/run.json", wantErr: true},
		{name: "bucket only", uri: "gs://my-bucket", wantErr: true},
		{name: "empty object", uri: "gs://my-bucket/", wantErr: true},
		{name: "empty bucket", uri: "gs:///run.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := parseGCSURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseGCSURI(%q) error = nil, want error", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseGCSURI(%q) error = %v", tt.uri, err)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("parseGCSURI(%q) = %q/%q, want %q/%q", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestObjectName(t *testing.T) {
	report := reconcile.RunReport{
		RunID:      "run-abc",
		UserID:     "user-1",
		FinishedAt: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}

	got := ObjectName(report)
	want := "reconciliation-reports/2025-03-14/user-1/run-abc.json"
	if got != want {
		t.Errorf("ObjectName() = %q, want %q", got, want)
	}
}

func TestObjectNameNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	report := reconcile.RunReport{
		RunID:      "run-abc",
		UserID:     "user-1",
		FinishedAt: time.Date(2025, 3, 15, 5, 0, 0, 0, loc), // 2025-03-14 19:00 UTC
	}

	got := ObjectName(report)
	want := "reconciliation-reports/2025-03-14/user-1/run-abc.json"
	if got != want {
		t.Errorf("ObjectName() = %q, want %q", got, want)
	}
}
