package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trampolino/pkg/envelope"
)

func TestResolve(t *testing.T) {
	c := NewContext(context.Background(), map[string]string{"subject": "sub-01"})
	c.SetResult("recon", "csd", envelope.New("csd").Success().
		WithOutputs(map[string]string{"wm_odf": "/work/recon/csd/wm.mif"}).
		WithOutputRef("/work/logs/recon.csd.log").
		Build())

	tests := []struct {
		in, want string
	}{
		{"${inputs.subject}", "sub-01"},
		{"${recon.csd.wm_odf}", "/work/recon/csd/wm.mif"},
		{"${recon.csd.status}", "success"},
		{"${recon.csd.log}", "/work/logs/recon.csd.log"},
		{"out/${inputs.subject}/${recon.csd.wm_odf}", "out/sub-01//work/recon/csd/wm.mif"},
		{"${inputs.missing}", "${inputs.missing}"},
		{"${recon.csd.nope}", "${recon.csd.nope}"},
		{"${track.tckgen.out_file}", "${track.tckgen.out_file}"},
		{"${recon.csd}", "${recon.csd}"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := c.Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnresolved(t *testing.T) {
	if !Unresolved("a ${x.y} b") {
		t.Error("reference not detected")
	}
	if Unresolved("$x {y}") {
		t.Error("false positive")
	}
}

func TestSetInput(t *testing.T) {
	c := NewContext(nil, nil)
	c.SetInput("odf", "/r/tramp/wm.mif")
	if got := c.Resolve("${inputs.odf}"); got != "/r/tramp/wm.mif" {
		t.Errorf("got %q", got)
	}
	if c.Ctx() == nil {
		t.Error("nil parent should default to Background")
	}
}

func TestParseSinkKey(t *testing.T) {
	tests := []struct {
		key     string
		sub     string
		name    string
		wantErr bool
	}{
		{"@odf", "", "odf", false},
		{"recon.@odf", "recon", "odf", false},
		{"a.b.@x", filepath.Join("a", "b"), "x", false},
		{"qc", "qc", "", false},
		{"", "", "", true},
		{"a..@x", "", "", true},
		{"@x.a", "", "", true},
		{"a/b.@x", "", "", true},
	}
	for _, tt := range tests {
		sub, name, err := parseSinkKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSinkKey(%q) err = %v, wantErr %v", tt.key, err, tt.wantErr)
			continue
		}
		if err == nil && (sub != tt.sub || name != tt.name) {
			t.Errorf("parseSinkKey(%q) = %q, %q; want %q, %q", tt.key, sub, name, tt.sub, tt.name)
		}
	}
}

func TestDataSinkPut(t *testing.T) {
	src := filepath.Join(t.TempDir(), "wm.mif")
	if err := os.WriteFile(src, []byte("fod"), 0640); err != nil {
		t.Fatal(err)
	}
	base := t.TempDir()
	sink := NewDataSink(base, "tramp")

	dst, err := sink.Put("@odf", src)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if dst != filepath.Join(base, "tramp", "wm.mif") {
		t.Errorf("dst = %s", dst)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "fod" {
		t.Errorf("content = %q, %v", data, err)
	}
	info, _ := os.Stat(dst)
	if info.Mode().Perm() != 0640 {
		t.Errorf("mode = %v", info.Mode().Perm())
	}

	dst, err = sink.Put("qc.@odf", src)
	if err != nil {
		t.Fatal(err)
	}
	if dst != filepath.Join(base, "tramp", "qc", "wm.mif") {
		t.Errorf("dst = %s", dst)
	}

	// overwriting an existing result is allowed
	if err := os.WriteFile(src, []byte("fod2"), 0640); err != nil {
		t.Fatal(err)
	}
	dst, _ = sink.Put("@odf", src)
	if data, _ := os.ReadFile(dst); string(data) != "fod2" {
		t.Errorf("overwrite content = %q", data)
	}
}

func TestDataSinkPutDir(t *testing.T) {
	src := filepath.Join(t.TempDir(), "tissues")
	if err := os.MkdirAll(filepath.Join(src, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(src, "a.mif"), []byte("a"), 0644)
	os.WriteFile(filepath.Join(src, "sub", "b.mif"), []byte("b"), 0644)

	dst, err := NewDataSink(t.TempDir(), "tramp").Put("@tissues", src)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if data, _ := os.ReadFile(filepath.Join(dst, "sub", "b.mif")); string(data) != "b" {
		t.Errorf("nested file = %q", data)
	}
}

func TestDataSinkPutMissing(t *testing.T) {
	if _, err := NewDataSink(t.TempDir(), "tramp").Put("@x", "/no/such/file.mif"); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{1400 * time.Millisecond, "1s"},
		{59 * time.Second, "59s"},
		{60 * time.Second, "1m"},
		{95 * time.Second, "1m 35s"},
		{time.Hour + 5*time.Minute + 10*time.Second, "1h 5m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
