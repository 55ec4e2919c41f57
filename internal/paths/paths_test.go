package paths

import (
	"reflect"
	"strings"
	"testing"
)

func TestSet_Stem(t *testing.T) {
	s := New("/tmp/w/", "S", "/data/T.bam")

	if got := s.Stem(); got != "/tmp/w/S" {
		t.Errorf("Stem() = %q, want /tmp/w/S", got)
	}
	if got := s.NativeStem(); got != "/tmp/w/T" {
		t.Errorf("NativeStem() = %q, want /tmp/w/T", got)
	}
	if !s.NeedsRename() {
		t.Error("NeedsRename() = false, want true")
	}
	if got := s.Summary(); got != "/tmp/w/S.seg" {
		t.Errorf("Summary() = %q, want /tmp/w/S.seg", got)
	}
}

func TestSet_SameStemNeedsNoRename(t *testing.T) {
	s := New("/tmp/w", "PCSI_0001", "/data/PCSI_0001.bam")
	if s.NeedsRename() {
		t.Error("NeedsRename() = true, want false when tumor basename matches sample")
	}
}

func TestSet_RootWorkDir(t *testing.T) {
	s := New("/", "S", "T.bam")
	if got := s.Stem(); got != "/S" {
		t.Errorf("Stem() = %q, want /S", got)
	}
}

func TestSet_PathsShareStem(t *testing.T) {
	s := New("/tmp/w", "S", "T.bam")
	for _, p := range s.Expected(s.Path(CallDiagramPDF)) {
		if !strings.HasPrefix(p, s.Stem()) {
			t.Errorf("path %q does not start with stem %q", p, s.Stem())
		}
		if strings.Contains(p, "/T.") {
			t.Errorf("path %q refers to the tumor file name", p)
		}
	}
}

func TestSet_Expected(t *testing.T) {
	s := New("/tmp/w", "S", "T.bam")

	observed := s.Expected(s.Path(Call))
	want := []string{
		"/tmp/w/S.targetcoverage.cnn",
		"/tmp/w/S.antitargetcoverage.cnn",
		"/tmp/w/S-scatter.pdf",
		"/tmp/w/S-diagram.pdf",
		"/tmp/w/S.cns",
		"/tmp/w/S.cnr",
		"/tmp/w/S.scatter.png",
		"/tmp/w/S.segmetrics.cns",
		"/tmp/w/S.segmetrics.call.cns",
	}
	if !reflect.DeepEqual(observed, want) {
		t.Errorf("Expected(call) = %v, want %v", observed, want)
	}

	pdf := s.Expected(s.Path(CallDiagramPDF))
	if len(pdf) != len(want)+1 || pdf[len(pdf)-1] != "/tmp/w/S.segmetrics.call-diagram.pdf" {
		t.Errorf("Expected(pdf) = %v, want diagram pdf appended", pdf)
	}
}
