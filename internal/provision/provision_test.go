package provision

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/me/cnvkit/internal/logging"
	"github.com/me/cnvkit/pkg/model"
)

func deliverables(t *testing.T, manual bool) []model.Deliverable {
	t.Helper()
	dir := t.TempDir()
	seg := filepath.Join(dir, "S.seg")
	bundle := filepath.Join(dir, "model-fit.tar.gz")
	if err := os.WriteFile(seg, []byte("seg data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bundle, []byte("bundle bytes!"), 0o644); err != nil {
		t.Fatal(err)
	}
	return []model.Deliverable{
		{ID: "dlv_1", Path: seg, Type: model.FileTypeText, Manual: manual},
		{ID: "dlv_2", Path: bundle, Type: model.FileTypeTarGz, Manual: manual},
	}
}

func TestKey(t *testing.T) {
	d := model.Deliverable{Path: "/data/out/S.seg"}
	if got := Key("run_1", d); got != "cnvkit/run_1/S.seg" {
		t.Errorf("Key(auto) = %q, want cnvkit/run_1/S.seg", got)
	}
	d.Manual = true
	if got := Key("run_1", d); got != "S.seg" {
		t.Errorf("Key(manual) = %q, want S.seg", got)
	}
}

func TestLocal_Provision(t *testing.T) {
	for _, manual := range []bool{false, true} {
		base := t.TempDir()
		files := deliverables(t, manual)

		got, err := NewLocal(base, logging.Discard()).Provision(context.Background(), "run_1", files)
		if err != nil {
			t.Fatalf("Provision() error = %v", err)
		}

		wantDir := filepath.Join(base, "cnvkit", "run_1")
		if manual {
			wantDir = base
		}
		for i, d := range got {
			want := filepath.Join(wantDir, filepath.Base(files[i].Path))
			if d.Destination != want {
				t.Errorf("manual=%v Destination = %q, want %q", manual, d.Destination, want)
			}
			data, err := os.ReadFile(want)
			if err != nil {
				t.Fatalf("read provisioned file: %v", err)
			}
			if d.SizeBytes != int64(len(data)) {
				t.Errorf("SizeBytes = %d, want %d", d.SizeBytes, len(data))
			}
		}
		if files[0].Destination != "" {
			t.Error("input slice was modified")
		}
	}
}

func TestLocal_MissingSource(t *testing.T) {
	files := deliverables(t, true)
	files[1].Path = filepath.Join(t.TempDir(), "absent.tar.gz")

	_, err := NewLocal(t.TempDir(), logging.Discard()).Provision(context.Background(), "run_1", files)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Provision() error = %v, want ErrNotExist", err)
	}
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string]string // key -> content type
	bodies  map[string]string
	err     error
}

func (f *fakeUploader) Upload(ctx context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string]string)
		f.bodies = make(map[string]string)
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = aws.ToString(in.ContentType)
	f.bodies[key] = string(body)
	return &manager.UploadOutput{}, nil
}

func TestS3_Provision(t *testing.T) {
	up := &fakeUploader{}
	p := NewS3WithUploader(up, "results", "oicr/cnv", logging.Discard())

	got, err := p.Provision(context.Background(), "run_9", deliverables(t, false))
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	wantTypes := map[string]string{
		"results/oicr/cnv/cnvkit/run_9/S.seg":            "text/plain",
		"results/oicr/cnv/cnvkit/run_9/model-fit.tar.gz": "application/tar-gzip",
	}
	if len(up.objects) != len(wantTypes) {
		t.Fatalf("uploaded %v, want %v", up.objects, wantTypes)
	}
	for key, ct := range wantTypes {
		if up.objects[key] != ct {
			t.Errorf("ContentType(%s) = %q, want %q", key, up.objects[key], ct)
		}
	}
	if up.bodies["results/oicr/cnv/cnvkit/run_9/S.seg"] != "seg data" {
		t.Errorf("body = %q", up.bodies["results/oicr/cnv/cnvkit/run_9/S.seg"])
	}

	var dests []string
	for _, d := range got {
		dests = append(dests, d.Destination)
	}
	sort.Strings(dests)
	want := []string{
		"s3://results/oicr/cnv/cnvkit/run_9/S.seg",
		"s3://results/oicr/cnv/cnvkit/run_9/model-fit.tar.gz",
	}
	sort.Strings(want)
	for i := range want {
		if dests[i] != want[i] {
			t.Errorf("destinations = %v, want %v", dests, want)
			break
		}
	}
	if got[0].SizeBytes != int64(len("seg data")) {
		t.Errorf("SizeBytes = %d", got[0].SizeBytes)
	}
}

func TestS3_UploadError(t *testing.T) {
	boom := errors.New("access denied")
	p := NewS3WithUploader(&fakeUploader{err: boom}, "results", "", logging.Discard())

	_, err := p.Provision(context.Background(), "run_1", deliverables(t, true))
	if !errors.Is(err, boom) {
		t.Errorf("Provision() error = %v, want %v", err, boom)
	}
}

func TestParseDestination(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	ctx := context.Background()

	p, err := ParseDestination(ctx, "/archive/cnv", logging.Discard())
	if err != nil {
		t.Fatalf("ParseDestination(local) error = %v", err)
	}
	if _, ok := p.(*Local); !ok {
		t.Errorf("ParseDestination(local) = %T, want *Local", p)
	}

	p, err = ParseDestination(ctx, "s3://bucket/some/prefix", logging.Discard())
	if err != nil {
		t.Fatalf("ParseDestination(s3) error = %v", err)
	}
	s3p, ok := p.(*S3)
	if !ok {
		t.Fatalf("ParseDestination(s3) = %T, want *S3", p)
	}
	if s3p.bucket != "bucket" || s3p.prefix != "some/prefix" {
		t.Errorf("bucket/prefix = %q/%q", s3p.bucket, s3p.prefix)
	}

	for _, bad := range []string{"", "s3://", "gs://bucket/x"} {
		if _, err := ParseDestination(ctx, bad, logging.Discard()); err == nil {
			t.Errorf("ParseDestination(%q) error = nil", bad)
		}
	}
}
