package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	chassis "github.com/ai8future/chassis-go/v5"
	"github.com/ai8future/chassis-go/v5/testkit"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"trampolino/pkg/colors"
	"trampolino/pkg/engine/enginetest"
	"trampolino/pkg/envelope"
	"trampolino/pkg/pipeline"
)

func TestMain(m *testing.M) {
	chassis.RequireMajor(5)
	os.Exit(m.Run())
}

type env struct {
	data, results, work string
	fake                *enginetest.FakeRunner
}

// isolate points HOME at an empty directory and clears TRAMPOLINO_* so
// no user settings leak into a test.
func isolate(t *testing.T) *env {
	t.Helper()
	testkit.SetEnv(t, map[string]string{
		"HOME":                       t.TempDir(),
		"TRAMPOLINO_RESULTS_DIR":     "",
		"TRAMPOLINO_WORK_DIR":        "",
		"TRAMPOLINO_BIN_DIR":         "",
		"TRAMPOLINO_NPROCS":          "",
		"TRAMPOLINO_NTHREADS":        "",
		"TRAMPOLINO_TRACK_SELECT":    "",
		"TRAMPOLINO_TRACK_ALGORITHM": "",
		"TRAMPOLINO_LOG_LEVEL":       "",
	})
	e := &env{data: t.TempDir(), results: t.TempDir(), work: t.TempDir(), fake: &enginetest.FakeRunner{}}
	for name, content := range map[string]string{
		"dwi.mif": "dwi",
		"bvecs":   "0 1 0 0\n0 0 1 0\n0 0 0 1\n",
		"bvals":   "0 1000 1000 1000\n",
	} {
		if err := os.WriteFile(filepath.Join(e.data, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return e
}

func (e *env) file(name string) string { return filepath.Join(e.data, name) }

// inputs are the global flags of a normal run.
func (e *env) inputs() []string {
	return []string{"-i", e.file("dwi.mif"), "-v", e.file("bvecs"), "-b", e.file("bvals"), "-r", e.results, "-w", e.work}
}

func (e *env) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	a.runner = e.fake
	root := a.rootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestReconTrack(t *testing.T) {
	e := isolate(t)
	args := append(e.inputs(), "recon", "track", "--select", "500")
	out, _, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"dwi2mask", "dwi2response", "dwi2fod", "tckgen"}
	if diff := cmp.Diff(want, e.fake.Binaries()); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
	call, _ := e.fake.Find("tckgen")
	if !strings.Contains(strings.Join(call.Args, " "), "-select 500") {
		t.Errorf("tckgen args = %v", call.Args)
	}
	if _, err := os.Stat(filepath.Join(e.results, "tramp", "tracking.tck")); err != nil {
		t.Errorf("tractogram not sunk: %v", err)
	}
	for _, s := range []string{"recon → track", "Run Summary", "tracking.tck"} {
		if !strings.Contains(out, s) {
			t.Errorf("output lacks %q", s)
		}
	}
}

func TestODFFlagSkipsRecon(t *testing.T) {
	e := isolate(t)
	odf := e.file("dwi.mif")
	out, _, err := e.run(t, "-o", odf, "-s", odf, "-r", e.results, "-w", e.work, "track")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if diff := cmp.Diff([]string{"tckgen"}, e.fake.Binaries()); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
}

func TestJSONDryRun(t *testing.T) {
	e := isolate(t)
	args := append(e.inputs(), "--dry-run", "--json", "recon", "track")
	out, _, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(e.fake.Calls()) != 0 {
		t.Errorf("dry run executed %v", e.fake.Binaries())
	}
	var r Report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("output is not a report: %v\n%s", err, out)
	}
	if r.Status != envelope.StatusSuccess || len(r.Workflows) != 2 {
		t.Fatalf("report = %+v", r)
	}
	for _, wf := range r.Workflows {
		for _, n := range wf.Nodes {
			if n.Status != envelope.StatusSkipped || n.Cmdline == "" {
				t.Errorf("%s.%s: status %s cmdline %q", wf.Workflow, n.Node, n.Status, n.Cmdline)
			}
		}
	}
	tramp := filepath.Join(e.results, "tramp")
	if r.Session.TCK != filepath.Join(tramp, "tracking.tck") {
		t.Errorf("session tck = %s", r.Session.TCK)
	}
	if r.Sunk["recon.@odf"] != filepath.Join(tramp, "wm.mif") {
		t.Errorf("sunk = %v", r.Sunk)
	}
}

func TestFailureReported(t *testing.T) {
	e := isolate(t)
	e.fake.Fail = map[string]error{"dwi2response": errors.New("exit status 1")}
	args := append(e.inputs(), "--json", "recon", "track")
	out, _, err := e.run(t, args...)
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(strings.Join(e.fake.Binaries(), " "), "tckgen") {
		t.Error("track ran after recon failed")
	}
	var r Report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("output is not a report: %v\n%s", err, out)
	}
	if r.Status != envelope.StatusFailure || !strings.Contains(r.Error, "dwi2response") {
		t.Errorf("report status %s error %q", r.Status, r.Error)
	}
}

func TestErrorsBeforeRunning(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"bogus", "recon"}, `unknown command "bogus"`},
		{"unknown flag", []string{"track", "--nope"}, "track: unknown flag: --nope"},
		{"positional", []string{"recon", "extra.mif"}, "takes no positional arguments"},
		{"bad bias", []string{"recon", "--bias", "spm"}, "--bias must be ants or fsl"},
		{"unknown set node", []string{"--set", "sift.term_number=10", "recon"}, "--set names no node"},
		{"bad set", []string{"--set", "select", "track"}, "invalid --set"},
		{"no odf", []string{"track"}, "run recon first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := isolate(t)
			args := append([]string{"-r", e.results, "-w", e.work}, tt.args...)
			_, _, err := e.run(t, args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
			if len(e.fake.Calls()) != 0 {
				t.Errorf("ran %v", e.fake.Binaries())
			}
		})
	}
}

func TestSetOverride(t *testing.T) {
	e := isolate(t)
	args := append(e.inputs(), "--set", "fod.max_sh=8", "--set", "recon.mask.nthreads=2", "recon")
	if _, _, err := e.run(t, args...); err != nil {
		t.Fatalf("run: %v", err)
	}
	fod, _ := e.fake.Find("dwi2fod")
	if !strings.Contains(strings.Join(fod.Args, " "), "-lmax 8") {
		t.Errorf("dwi2fod args = %v", fod.Args)
	}
	mask, _ := e.fake.Find("dwi2mask")
	if !strings.Contains(strings.Join(mask.Args, " "), "-nthreads 2") {
		t.Errorf("dwi2mask args = %v", mask.Args)
	}
}

func TestSetOverrideRelativeInput(t *testing.T) {
	e := isolate(t)
	roi := e.file("roi.mif")
	if err := os.WriteFile(roi, []byte("roi"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(e.data)
	odf := e.file("dwi.mif")
	args := []string{"-o", odf, "-s", odf, "-r", e.results, "-w", e.work, "--set", "tckgen.roi_incl=roi.mif", "track"}
	if _, _, err := e.run(t, args...); err != nil {
		t.Fatalf("run: %v", err)
	}
	call, _ := e.fake.Find("tckgen")
	if !strings.Contains(strings.Join(call.Args, " "), "-include "+roi) {
		t.Errorf("tckgen args = %v, want -include %s", call.Args, roi)
	}
	if got, _ := os.ReadFile(roi); string(got) != "roi" {
		t.Errorf("roi.mif = %q", got)
	}
}

func TestReconMSMT5TT(t *testing.T) {
	e := isolate(t)
	t1 := e.file("T1.nii.gz")
	if err := os.WriteFile(t1, []byte("t1"), 0644); err != nil {
		t.Fatal(err)
	}
	args := append(e.inputs(), "-a", t1, "recon", "--response", "msmt_5tt", "track")
	if _, _, err := e.run(t, args...); err != nil {
		t.Fatalf("run: %v", err)
	}
	var prepared int
	for _, bin := range e.fake.Binaries() {
		if bin == "act_anat_prepare_fsl" {
			prepared++
		}
	}
	if prepared != 1 {
		t.Errorf("act_anat_prepare_fsl ran %d times: %v", prepared, e.fake.Binaries())
	}
	resp, _ := e.fake.Find("dwi2response")
	if len(resp.Args) == 0 || resp.Args[0] != "msmt_5tt" {
		t.Errorf("dwi2response args = %v", resp.Args)
	}
	ftt := filepath.Join(e.results, "tramp", "act_5tt.mif")
	tck, _ := e.fake.Find("tckgen")
	if !strings.Contains(strings.Join(tck.Args, " "), "-act "+ftt) {
		t.Errorf("tckgen args = %v", tck.Args)
	}
}

func TestBannerShowsStepOptions(t *testing.T) {
	e := isolate(t)
	args := append(e.inputs(), "recon", "--denoise", "--degibbs", "--bias", "fsl", "track", "--select", "500")
	out, _, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, opt := range []string{"denoise", "degibbs", "bias=fsl", "select=500"} {
		if !strings.Contains(out, colors.Paint(colors.Green, opt)) {
			t.Errorf("banner lacks option %q:\n%s", opt, out)
		}
	}
}

func TestBadSettingsFile(t *testing.T) {
	e := isolate(t)
	dir := filepath.Join(os.Getenv("HOME"), ".trampolino")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{bad"), 0644); err != nil {
		t.Fatal(err)
	}
	_, errOut, err := e.run(t, append(e.inputs(), "recon")...)
	if err == nil || !strings.Contains(err.Error(), "settings") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(errOut, "settings.json") || !strings.Contains(errOut, "results_dir") {
		t.Errorf("no setup instructions:\n%s", errOut)
	}
	if len(e.fake.Calls()) != 0 {
		t.Errorf("ran %v", e.fake.Binaries())
	}
}

func TestList(t *testing.T) {
	e := isolate(t)
	out, _, err := e.run(t, "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"NAME", "Tractography", "tckgen", "ReplaceFSwithFIRST"} {
		if !strings.Contains(out, s) {
			t.Errorf("list output lacks %q:\n%s", s, out)
		}
	}

	out, _, err = e.run(t, "--json", "list")
	if err != nil {
		t.Fatal(err)
	}
	var tools []toolInfo
	if err := json.Unmarshal([]byte(out), &tools); err != nil {
		t.Fatalf("list --json: %v", err)
	}
	if len(tools) != 11 {
		t.Errorf("tools = %d", len(tools))
	}
}

func TestCmdline(t *testing.T) {
	e := isolate(t)
	out, _, err := e.run(t, "cmdline", "mrdegibbs", "in_file=dwi.mif")
	if err != nil {
		t.Fatal(err)
	}
	if out != "mrdegibbs -axes 0,1 -maxW 3 -minW 1 -nshifts 20 dwi.mif dwi_unr.mif\n" {
		t.Errorf("cmdline = %q", out)
	}

	out, _, err = e.run(t, "cmdline", "Tractography", "in_file=wm.mif", "seed_image=mask.mif", "cmdline", "TCKSift", "in_file=t.tck", "in_fod=wm.mif")
	if err != nil {
		t.Fatal(err)
	}
	want := "tckgen -algorithm iFOD2 -seed_image mask.mif wm.mif tracked.tck\ntcksift t.tck wm.mif t_sift.tck\n"
	if out != want {
		t.Errorf("chained cmdline = %q, want %q", out, want)
	}

	out, _, err = e.run(t, "--json", "cmdline", "tckgen", "seed_image=mask.mif", "in_file=wm.mif")
	if err != nil {
		t.Fatal(err)
	}
	var info cmdlineInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("not json: %v\n%s", err, out)
	}
	if diff := cmp.Diff([]string{"in_file", "seed_image"}, info.Inputs); diff != "" {
		t.Errorf("inputs (-want +got):\n%s", diff)
	}
	if info.Name != "Tractography" || !strings.HasPrefix(info.Cmdline, "tckgen ") {
		t.Errorf("cmdline info = %+v", info)
	}

	for _, args := range [][]string{
		{"cmdline"},
		{"cmdline", "nosuchtool"},
		{"cmdline", "tckgen", "select"},
		{"cmdline", "tckgen", "select=many"},
	} {
		if _, _, err := e.run(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestHelp(t *testing.T) {
	e := isolate(t)
	out, _, err := e.run(t)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Commands chain left to right") {
		t.Errorf("help = %s", out)
	}
	out, _, err = e.run(t, "track", "--help")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "--select") {
		t.Errorf("track help = %s", out)
	}
	out, _, err = e.run(t, "recon", "-h")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"dwi2mask", "--denoise", "--response"} {
		if !strings.Contains(out, s) {
			t.Errorf("recon help lacks %q:\n%s", s, out)
		}
	}
}

func TestSplit_FlagValuesNamedLikeCommands(t *testing.T) {
	a := newApp(&bytes.Buffer{}, &bytes.Buffer{})
	steps, err := a.split([]string{"filter", "-t", "track", "connectome", "--parc", "list", "--lut=recon", "track"})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, st := range steps {
		names = append(names, st.name)
	}
	if diff := cmp.Diff([]string{"filter", "connectome", "track"}, names); diff != "" {
		t.Errorf("steps (-want +got):\n%s", diff)
	}
	if f := steps[0].stage.(pipeline.Filter); f.TCK != "track" {
		t.Errorf("filter tck = %q", f.TCK)
	}
	if c := steps[1].stage.(pipeline.Connectome); c.Parc != "list" || c.LUT != "recon" {
		t.Errorf("connectome = %+v", c)
	}

	if _, err := a.split([]string{"filter", "-t"}); err == nil {
		t.Error("flag without value accepted")
	}
}

func TestSplit(t *testing.T) {
	a := newApp(&bytes.Buffer{}, &bytes.Buffer{})
	steps, err := a.split([]string{"recon", "--denoise", "track", "filter", "-t", "x.tck", "connectome", "--parc", "p.mif", "--lut", "lut.txt"})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, st := range steps {
		names = append(names, st.name)
	}
	if diff := cmp.Diff([]string{"recon", "track", "filter", "connectome"}, names); diff != "" {
		t.Errorf("steps (-want +got):\n%s", diff)
	}
	if f := steps[2].stage.(pipeline.Filter); f.TCK != "x.tck" {
		t.Errorf("filter tck = %q", f.TCK)
	}
	if c := steps[3].stage.(pipeline.Connectome); c.Parc != "p.mif" || c.LUT != "lut.txt" {
		t.Errorf("connectome = %+v", c)
	}
	var o pipeline.Options
	steps[0].tweak(&o)
	if !o.Preprocess.Denoise || o.Preprocess.Degibbs {
		t.Errorf("recon tweak = %+v", o.Preprocess)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(&buf, "warn", false)
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("log = %q", buf.String())
	}
	if log, _ := newLogger(&buf, "warn", true); !log.IsLevelEnabled(logrus.DebugLevel) {
		t.Error("verbose did not enable debug")
	}
	if _, err := newLogger(&buf, "loud", false); err == nil {
		t.Error("bad level accepted")
	}
}
