package article

import (
	"strings"
	"testing"
)

const annotatedFixture = `<html><head></head><body><h2 id="sec_1">A</h2><p id="p_1">text</p><h2 id="sec_2">B</h2><p id="p_2">more</p></body></html>`

func resolved(sectionID, paragraphID, position, url string, priority float64) ResolvedSlot {
	return ResolvedSlot{
		Slot: Slot{
			SectionID:   sectionID,
			ParagraphID: paragraphID,
			Position:    position,
			SearchQuery: "q",
			Priority:    priority,
		},
		ImageURL: url,
		AltText:  "alt",
		Caption:  "cap",
	}
}

func TestInjectAfterParagraph(t *testing.T) {
	slot := resolved("sec_1", "p_1", PositionAfter, "http://x/i.jpg", 0.8)

	out, report, err := Inject(annotatedFixture, []ResolvedSlot{slot})
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if report.Injected != 1 || len(report.Skipped) != 0 {
		t.Fatalf("report: %+v", report)
	}

	figIdx := strings.Index(out, "<figure")
	pEnd := strings.Index(out, "</p>")
	secIdx := strings.Index(out, `id="sec_1"`)
	if figIdx < 0 || pEnd < 0 {
		t.Fatalf("figure or paragraph missing in output:\n%s", out)
	}
	// Image block immediately follows the p_1 element, nothing before sec_1.
	if !strings.Contains(out, `<p id="p_1">text</p><figure`) {
		t.Errorf("figure not immediately after p_1:\n%s", out)
	}
	if figIdx < secIdx {
		t.Errorf("figure appears before sec_1:\n%s", out)
	}
	if !strings.Contains(out, `src="http://x/i.jpg"`) {
		t.Errorf("image url missing:\n%s", out)
	}
}

func TestInjectBeforeAndInside(t *testing.T) {
	before := resolved("sec_2", "", PositionBefore, "http://x/b.jpg", 0.5)
	inside := resolved("sec_1", "p_1", PositionInside, "http://x/c.jpg", 0.5)

	out, report, err := Inject(annotatedFixture, []ResolvedSlot{before, inside})
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if report.Injected != 2 {
		t.Fatalf("report: %+v", report)
	}

	if !strings.Contains(out, `</figure><h2 id="sec_2">`) {
		t.Errorf("before-position figure not immediately before sec_2:\n%s", out)
	}
	// inside appends as last child of the paragraph.
	if !strings.Contains(out, `src="http://x/c.jpg"`) || !strings.Contains(out, `</figure></p>`) {
		t.Errorf("inside-position figure not last child of p_1:\n%s", out)
	}
}

func TestInjectSectionFallbackWhenNoParagraphID(t *testing.T) {
	slot := resolved("sec_2", "", PositionAfter, "http://x/i.jpg", 0.5)

	out, _, err := Inject(annotatedFixture, []ResolvedSlot{slot})
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	// Target is the section heading element, not any paragraph.
	if !strings.Contains(out, `<h2 id="sec_2">B</h2><figure`) {
		t.Errorf("figure not anchored to section element:\n%s", out)
	}
}

func TestInjectUnknownTargetSkipped(t *testing.T) {
	missing := resolved("sec_99", "p_99", PositionAfter, "http://x/i.jpg", 0.9)
	valid := resolved("sec_1", "p_1", PositionAfter, "http://x/ok.jpg", 0.1)

	out, report, err := Inject(annotatedFixture, []ResolvedSlot{missing, valid})
	if err != nil {
		t.Fatalf("Inject must not fail the batch for one bad slot: %v", err)
	}
	if report.Injected != 1 || len(report.Skipped) != 1 {
		t.Fatalf("report: %+v", report)
	}
	if report.Skipped[0].Reason != "target not found" {
		t.Errorf("skip reason: %q", report.Skipped[0].Reason)
	}
	if !strings.Contains(out, `src="http://x/ok.jpg"`) {
		t.Errorf("valid slot was not injected:\n%s", out)
	}

	// With only the bad slot the output is byte-identical to a no-op pass.
	onlyBad, _, err := Inject(annotatedFixture, []ResolvedSlot{missing})
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	noop, _, err := Inject(annotatedFixture, nil)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if onlyBad != noop {
		t.Errorf("skipped slot changed the output:\n%s\nvs\n%s", onlyBad, noop)
	}
}

func TestInjectUnresolvedSlotDropped(t *testing.T) {
	slot := resolved("sec_1", "p_1", PositionAfter, "", 0.9)

	out, report, err := Inject(annotatedFixture, []ResolvedSlot{slot})
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if report.Injected != 0 || len(report.Skipped) != 1 || report.Skipped[0].Reason != "no image resolved" {
		t.Errorf("report: %+v", report)
	}
	if strings.Contains(out, "<figure") {
		t.Errorf("unresolved slot produced a figure:\n%s", out)
	}
}

func TestInjectPriorityOrderIsCommutative(t *testing.T) {
	high := resolved("sec_1", "p_1", PositionAfter, "http://x/high.jpg", 0.9)
	low := resolved("sec_1", "p_1", PositionAfter, "http://x/low.jpg", 0.3)

	out1, _, err := Inject(annotatedFixture, []ResolvedSlot{high, low})
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	out2, _, err := Inject(annotatedFixture, []ResolvedSlot{low, high})
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}

	if out1 != out2 {
		t.Errorf("result depends on input slot order:\n%s\nvs\n%s", out1, out2)
	}

	// Higher priority block sits closer to the front of the document.
	hi := strings.Index(out1, "high.jpg")
	lo := strings.Index(out1, "low.jpg")
	if hi < 0 || lo < 0 {
		t.Fatalf("both figures must be present:\n%s", out1)
	}
	if hi > lo {
		t.Errorf("priority order violated: high-priority figure after low-priority one:\n%s", out1)
	}
}

func TestInjectEmptyCaptionOmitsFigcaption(t *testing.T) {
	slot := resolved("sec_1", "p_1", PositionAfter, "http://x/i.jpg", 0.5)
	slot.Caption = ""
	slot.CaptionHint = ""

	out, _, err := Inject(annotatedFixture, []ResolvedSlot{slot})
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if strings.Contains(out, "<figcaption") {
		t.Errorf("empty caption must not render a figcaption:\n%s", out)
	}
}

func TestInjectAltTextFallback(t *testing.T) {
	slot := resolved("sec_1", "p_1", PositionAfter, "http://x/i.jpg", 0.5)
	slot.AltText = ""
	slot.AltTextHint = ""

	out, _, err := Inject(annotatedFixture, []ResolvedSlot{slot})
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if !strings.Contains(out, `alt="`+DefaultAltText+`"`) {
		t.Errorf("expected default alt text, got:\n%s", out)
	}
}

func TestInjectPreservesExistingContent(t *testing.T) {
	slots := []ResolvedSlot{
		resolved("sec_1", "p_1", PositionAfter, "http://x/1.jpg", 0.9),
		resolved("sec_2", "p_2", PositionBefore, "http://x/2.jpg", 0.4),
	}

	out, _, err := Inject(annotatedFixture, slots)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	for _, want := range []string{
		`<h2 id="sec_1">A</h2>`,
		`<p id="p_1">text</p>`,
		`<h2 id="sec_2">B</h2>`,
		`<p id="p_2">more</p>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("existing content %s lost or altered:\n%s", want, out)
		}
	}
}

func TestInjectDoesNotMutateInput(t *testing.T) {
	input := annotatedFixture
	_, _, err := Inject(input, []ResolvedSlot{resolved("sec_1", "p_1", PositionAfter, "http://x/i.jpg", 0.5)})
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if input != annotatedFixture {
		t.Error("input string was mutated")
	}

	// Repeated calls are independent.
	a, _, _ := Inject(annotatedFixture, []ResolvedSlot{resolved("sec_1", "p_1", PositionAfter, "http://x/i.jpg", 0.5)})
	b, _, _ := Inject(annotatedFixture, []ResolvedSlot{resolved("sec_1", "p_1", PositionAfter, "http://x/i.jpg", 0.5)})
	if a != b {
		t.Error("repeated Inject calls diverge")
	}
}
