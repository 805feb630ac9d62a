package parsers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/autovant/RCA-Final-sub001/internal/domain"
)

func entityValues(entities []domain.Entity, entityType string) []string {
	var out []string
	for _, e := range entities {
		if e.EntityType == entityType {
			out = append(out, e.Value)
		}
	}
	return out
}

func TestUiPathParserExtractsWorkflowAndRobot(t *testing.T) {
	p := NewUiPathParser()
	res := p.Parse(context.Background(), []File{{
		Name: "orchestrator.log",
		Content: "UiPath Orchestrator execution log\n" +
			"Workflow: \"Main.xaml\"\n" +
			"Robot: \"R1\"\n" +
			"Job ID: 5f3a2b1c-9d4e-4f6a-8b7c-1d2e3f4a5b6c\n",
	}})
	if !res.Success {
		t.Fatalf("Parse failed: %s", res.Error)
	}
	if got := entityValues(res.ExtractedEntities, "workflow"); len(got) != 1 || got[0] != "Main.xaml" {
		t.Fatalf("workflow entities = %v, want [Main.xaml]", got)
	}
	if got := entityValues(res.ExtractedEntities, "robot"); len(got) != 1 || got[0] != "R1" {
		t.Fatalf("robot entities = %v, want [R1]", got)
	}
	if got := entityValues(res.ExtractedEntities, "execution_id"); len(got) != 1 {
		t.Fatalf("execution_id entities = %v, want one", got)
	}
}

func TestAutomationAnywhereBotRunnerSuppression(t *testing.T) {
	p := NewAutomationAnywhereParser()
	res := p.Parse(context.Background(), []File{{
		Name:    "aa.log",
		Content: "Bot Runner: Alpha01\nBot: InvoiceProcessor\n",
	}})
	if !res.Success {
		t.Fatalf("Parse failed: %s", res.Error)
	}
	if got := entityValues(res.ExtractedEntities, "bot_runner"); len(got) != 1 || got[0] != "Alpha01" {
		t.Fatalf("bot_runner entities = %v, want [Alpha01]", got)
	}
	got := entityValues(res.ExtractedEntities, "bot")
	if len(got) != 1 || got[0] != "InvoiceProcessor" {
		t.Fatalf("bot entities = %v, want [InvoiceProcessor] with the runner line suppressed", got)
	}
}

func TestParseDeduplicatesEntities(t *testing.T) {
	p := NewBluePrismParser()
	line := "Process: Invoice Handling\nWork Queue: Invoices\n"
	res := p.Parse(context.Background(), []File{{
		Name:    "bp.log",
		Content: strings.Repeat(line, 5),
	}})
	if !res.Success {
		t.Fatalf("Parse failed: %s", res.Error)
	}
	if got := entityValues(res.ExtractedEntities, "process"); len(got) != 1 {
		t.Fatalf("process entities = %v, want one after dedup", got)
	}
	if got := entityValues(res.ExtractedEntities, "work_queue"); len(got) != 1 {
		t.Fatalf("work_queue entities = %v, want one after dedup", got)
	}

	// Same content under a different filename is a distinct triple.
	res2 := p.Parse(context.Background(), []File{
		{Name: "a.log", Content: line},
		{Name: "b.log", Content: line},
	})
	if got := entityValues(res2.ExtractedEntities, "process"); len(got) != 2 {
		t.Fatalf("process entities across files = %v, want two", got)
	}
}

func TestParseIdempotent(t *testing.T) {
	p := NewPegaParser()
	files := []File{{
		Name:    "pega.log",
		Content: "Case ID: C-1234\nRuleset: MyCo:Payments\nOperator: jdoe@example.com\n",
	}}
	first := p.Parse(context.Background(), files)
	second := p.Parse(context.Background(), files)
	if len(first.ExtractedEntities) == 0 {
		t.Fatal("expected entities from pega log")
	}
	if len(first.ExtractedEntities) != len(second.ExtractedEntities) {
		t.Fatalf("entity count changed across runs: %d vs %d",
			len(first.ExtractedEntities), len(second.ExtractedEntities))
	}
}

func TestParseSkipsNonTextFiles(t *testing.T) {
	p := NewAppianParser()
	res := p.Parse(context.Background(), []File{
		{Name: "binary.bin", Content: "PK\x00\x01\x02"},
		{Name: "app.log", Content: "Process Model: Expense Approval\n"},
	})
	if !res.Success {
		t.Fatalf("Parse failed: %s", res.Error)
	}
	found := false
	for _, w := range res.Warnings {
		if w == "Skipping non-text file: binary.bin" {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v, want non-text skip warning", res.Warnings)
	}
	if got := entityValues(res.ExtractedEntities, "process_model"); len(got) != 1 {
		t.Fatalf("process_model entities = %v, want one from the text file", got)
	}
}

func TestParseEmptyFileList(t *testing.T) {
	p := NewUiPathParser()
	res := p.Parse(context.Background(), nil)
	if !res.Success {
		t.Fatalf("empty file list must succeed, got error %s", res.Error)
	}
	if len(res.ExtractedEntities) != 0 {
		t.Fatalf("expected zero entities, got %d", len(res.ExtractedEntities))
	}
}

func TestParseExpiredContext(t *testing.T) {
	p := NewUiPathParser()
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	res := p.Parse(ctx, []File{{Name: "x.log", Content: "Workflow: \"Main.xaml\"\n"}})
	if res.Success {
		t.Fatal("expected failure result for expired context")
	}
	if res.Error == "" {
		t.Fatal("expected error string recorded")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	cases := []struct {
		name string
		want domain.Platform
	}{
		{name: "uipath", want: domain.PlatformUiPath},
		{name: "UiPath", want: domain.PlatformUiPath},
		{name: "BLUE_PRISM", want: domain.PlatformBluePrism},
		{name: "automation_anywhere", want: domain.PlatformAutomationAnywhere},
	}
	for _, tc := range cases {
		p := r.GetParserForPlatform(tc.name)
		if p == nil || p.Platform() != tc.want {
			t.Fatalf("GetParserForPlatform(%q) = %v, want %s", tc.name, p, tc.want)
		}
	}
	if p := r.GetParserForPlatform("workday"); p != nil {
		t.Fatalf("unknown platform must resolve to nil, got %v", p)
	}
}
