package procs

import (
	"context"
	"strings"
	"testing"
)

type stubCapturer struct {
	out string
	ok  bool
	cmd string
}

func (s *stubCapturer) ExecuteCapture(ctx context.Context, command string) (string, bool) {
	s.cmd = command
	return s.out, s.ok
}

func TestParseSnapshot(t *testing.T) {
	output := strings.Join([]string{
		"1024 com.example.a",
		"512 com.android.systemui",
		"garbage",
		"abc com.example.bad",
		"64 logd",
		"32 com.example.a:remote",
		"16 android.hardware.audio@2.0-service",
		"ERROR: ps: permission denied",
		"",
	}, "\n")

	records := ParseSnapshot(output)
	if len(records) != 2 {
		t.Fatalf("ParseSnapshot() returned %d records, want 2: %+v", len(records), records)
	}
	if records[0].Package != "com.example.a" || records[0].RSSKb != 1024 {
		t.Errorf("records[0] = %+v, want com.example.a/1024", records[0])
	}
	if records[1].Package != "com.android.systemui" || records[1].RSSKb != 512 {
		t.Errorf("records[1] = %+v, want com.android.systemui/512", records[1])
	}
}

func TestParseSnapshot_EveryRecordIsPackageShaped(t *testing.T) {
	output := "1 a.b\n2 c-d.e\n3 f:g.h\n4 i@j.k\n5 nodot\n6 x.y.z\n"
	for _, r := range ParseSnapshot(output) {
		if !strings.Contains(r.Package, ".") || strings.ContainsAny(r.Package, excludedChars) {
			t.Errorf("record %q is not package-shaped", r.Package)
		}
	}
}

func TestParseSnapshot_SumsDuplicates(t *testing.T) {
	records := ParseSnapshot("100 com.example.a\n50 com.example.a\n")
	if len(records) != 1 || records[0].RSSKb != 150 {
		t.Errorf("ParseSnapshot() = %+v, want single record with 150", records)
	}
}

func TestSnapshot_CaptureFailure(t *testing.T) {
	c := &stubCapturer{ok: false}
	records, ok := Snapshot(context.Background(), c)
	if ok {
		t.Error("Snapshot() ok = true, want false on capture failure")
	}
	if records != nil {
		t.Errorf("Snapshot() records = %v, want nil", records)
	}
	if c.cmd != SnapshotCommand {
		t.Errorf("Snapshot() ran %q, want %q", c.cmd, SnapshotCommand)
	}
}

func TestNames(t *testing.T) {
	c := &stubCapturer{ok: true, out: "com.example.a\n  com.example.b  \ninit\n"}
	names, ok := Names(context.Background(), c)
	if !ok {
		t.Fatal("Names() ok = false")
	}
	if len(names) != 2 {
		t.Fatalf("Names() = %v, want 2 entries", names)
	}
	for _, want := range []string{"com.example.a", "com.example.b"} {
		if _, found := names[want]; !found {
			t.Errorf("Names() missing %s", want)
		}
	}
	if c.cmd != NamesCommand {
		t.Errorf("Names() ran %q, want %q", c.cmd, NamesCommand)
	}
}

func TestSortByMemory(t *testing.T) {
	records := []Record{
		{Package: "b.b", RSSKb: 10},
		{Package: "a.a", RSSKb: 10},
		{Package: "c.c", RSSKb: 99},
	}
	SortByMemory(records)
	got := []string{records[0].Package, records[1].Package, records[2].Package}
	want := []string{"c.c", "a.a", "b.b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortByMemory() order = %v, want %v", got, want)
		}
	}
}
