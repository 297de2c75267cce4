package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"filament/internal/diag"
	"filament/internal/source"
)

func TestJSONBasic(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.Add("/work/main.fil", []byte("[[comp]]\nname = \"main\"\n"))
	bag := diag.NewBag(10)
	d := diag.NewError(diag.InpBindings, source.Span{File: id, Start: 16, End: 20}, "Incorrect parameter bindings")
	d.Notes = []diag.Note{{Span: source.NoSpan, Msg: "use --bindings"}}
	bag.Add(d)

	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{IncludePositions: true, PathMode: PathModeBasename, IncludeNotes: true}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if out.Count != 1 {
		t.Fatalf("count = %d", out.Count)
	}
	got := out.Diagnostics[0]
	if got.Severity != "error" || got.Code != "INP1008" {
		t.Fatalf("diagnostic = %+v", got)
	}
	if got.Location.File != "main.fil" || got.Location.StartLine != 2 || got.Location.StartCol != 8 {
		t.Fatalf("location = %+v", got.Location)
	}
	if len(got.Notes) != 1 || got.Notes[0].Location.File != "" {
		t.Fatalf("notes = %+v", got.Notes)
	}
}

func TestJSONMax(t *testing.T) {
	bag := diag.NewBag(10)
	for range 3 {
		bag.Add(diag.NewError(diag.ObgMisc, source.NoSpan, "cannot prove"))
	}
	out := BuildDiagnosticsOutput(bag, nil, JSONOpts{Max: 2})
	if out.Count != 2 || len(out.Diagnostics) != 2 {
		t.Fatalf("count = %d", out.Count)
	}
}

func TestSarif(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.Add("main.fil", []byte("assert W > 0;\n"))
	bag := diag.NewBag(10)
	d := diag.NewError(diag.ObgMisc, source.Span{File: id, Start: 7, End: 12}, "cannot prove source-level fact")
	d.Notes = []diag.Note{{Span: source.Span{File: id, Start: 0, End: 6}, Msg: "asserted here"}}
	bag.Add(d)
	bag.Add(diag.NewError(diag.ObgMisc, source.NoSpan, "cannot prove"))

	var buf bytes.Buffer
	if err := Sarif(&buf, bag, fs, SarifRunMeta{ToolName: "filament", ToolVersion: "0.1.0", InvocationArgs: []string{"main.fil"}}); err != nil {
		t.Fatalf("Sarif: %v", err)
	}
	var log sarifLog
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	run := log.Runs[0]
	if log.Version != "2.1.0" || len(run.Results) != 2 || len(run.Tool.Driver.Rules) != 1 {
		t.Fatalf("log = %+v", log)
	}
	res := run.Results[0]
	if res.RuleID != "OBG3000" || res.Level != "error" || len(res.Locations) != 1 || len(res.RelatedLocations) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if r := res.Locations[0].Physical.Region; r.StartColumn != 8 || r.ByteLength != 5 {
		t.Fatalf("region = %+v", r)
	}
	if run.Invocations[0].ExecutionSuccessful {
		t.Fatalf("run with errors marked successful")
	}
}
