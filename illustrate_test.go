package illustrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mlenoir/illustrate/article"
	"github.com/mlenoir/illustrate/imagesearch"
	"github.com/mlenoir/illustrate/llm"
	"github.com/mlenoir/illustrate/source"
	"github.com/mlenoir/illustrate/suggest"
)

const articleHTML = `<html><body><article>
<h1>Acquisition of Example Corp</h1>
<h2>Background</h2>
<p>Example Corp was founded in 1990.</p>
<p>The acquisition closed in March.</p>
</article></body></html>`

// fakeChat is a canned llm.Provider for the suggestion stage.
type fakeChat struct {
	content string
	err     error
}

func (f *fakeChat) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content, FinishReason: "stop"}, nil
}

// fakeSearcher answers queries from a fixed map; missing queries error.
type fakeSearcher struct {
	results map[string][]imagesearch.Candidate
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]imagesearch.Candidate, error) {
	candidates, ok := f.results[query]
	if !ok {
		return nil, fmt.Errorf("search backend unavailable for %q", query)
	}
	return candidates, nil
}

func slotsJSON(slots ...string) string {
	return `{"slots":[` + strings.Join(slots, ",") + `]}`
}

func slotJSON(sectionID, paragraphID, query string, priority float64) string {
	return fmt.Sprintf(`{"section_id":%q,"paragraph_id":%q,"position":"after","search_query":%q,"alt_text_hint":"alt","caption_hint":"cap","priority":%v}`,
		sectionID, paragraphID, query, priority)
}

func testEngine(chat llm.Provider, searcher imagesearch.Searcher) *engine {
	e := &engine{
		cfg:     DefaultConfig(),
		sources: source.NewRegistry(),
		curate:  &curator{},
	}
	if chat != nil {
		e.suggester = suggest.New(chat)
	}
	e.searcher = searcher
	return e
}

func TestEnhanceFullPipeline(t *testing.T) {
	chat := &fakeChat{content: slotsJSON(slotJSON("sec_1", "p_1", "example corp 1990", 0.9))}
	searcher := &fakeSearcher{results: map[string][]imagesearch.Candidate{
		"example corp 1990": {{URL: "http://img/hq.jpg", Title: "Example Corp HQ"}},
	}}

	res, err := testEngine(chat, searcher).Enhance(context.Background(), articleHTML)
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}

	if res.Document.Title != "Acquisition of Example Corp" {
		t.Errorf("title: %q", res.Document.Title)
	}
	if len(res.Slots) != 1 || len(res.Resolved) != 1 {
		t.Fatalf("slots=%d resolved=%d", len(res.Slots), len(res.Resolved))
	}
	if res.Resolved[0].ImageURL != "http://img/hq.jpg" {
		t.Errorf("resolved url: %q", res.Resolved[0].ImageURL)
	}
	// With no vision provider the caption hint wins over the image title.
	if res.Resolved[0].Caption != "cap" {
		t.Errorf("caption hint not carried: %q", res.Resolved[0].Caption)
	}
	if res.Report.Injected != 1 {
		t.Errorf("report: %+v", res.Report)
	}
	if !strings.Contains(res.EnhancedHTML, `src="http://img/hq.jpg"`) {
		t.Errorf("figure missing from enhanced html:\n%s", res.EnhancedHTML)
	}
	if strings.Contains(res.AnnotatedHTML, "<figure") {
		t.Errorf("annotated html must stay figure-free:\n%s", res.AnnotatedHTML)
	}
}

func TestEnhanceWithoutSuggester(t *testing.T) {
	res, err := testEngine(nil, nil).Enhance(context.Background(), articleHTML)
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if len(res.Slots) != 0 || res.Report.Injected != 0 {
		t.Errorf("expected pass-through run, got %+v", res.Report)
	}
	// Ids are still assigned.
	if !strings.Contains(res.EnhancedHTML, `id="p_1"`) {
		t.Errorf("annotation missing:\n%s", res.EnhancedHTML)
	}
	if strings.Contains(res.EnhancedHTML, "<figure") {
		t.Errorf("no figures expected:\n%s", res.EnhancedHTML)
	}
}

func TestEnhanceWithoutSearcher(t *testing.T) {
	chat := &fakeChat{content: slotsJSON(slotJSON("sec_1", "p_1", "q", 0.9))}

	res, err := testEngine(chat, nil).Enhance(context.Background(), articleHTML)
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if len(res.Slots) != 1 {
		t.Fatalf("slots: %d", len(res.Slots))
	}
	if res.Resolved[0].ImageURL != "" {
		t.Errorf("slot should stay unresolved: %+v", res.Resolved[0])
	}
	if res.Report.Injected != 0 || len(res.Report.Skipped) != 1 ||
		res.Report.Skipped[0].Reason != "no image resolved" {
		t.Errorf("report: %+v", res.Report)
	}
}

func TestEnhanceSuggestionFailureIsFatal(t *testing.T) {
	chat := &fakeChat{err: errors.New("boom")}

	_, err := testEngine(chat, nil).Enhance(context.Background(), articleHTML)
	if !errors.Is(err, suggest.ErrSuggestionFailed) {
		t.Errorf("error = %v, want ErrSuggestionFailed", err)
	}
}

func TestEnhanceSchemaViolationIsFatal(t *testing.T) {
	chat := &fakeChat{content: `{"slots":[{"search_query":"q"}]}`}

	_, err := testEngine(chat, nil).Enhance(context.Background(), articleHTML)
	if !errors.Is(err, suggest.ErrSlotSchema) {
		t.Errorf("error = %v, want ErrSlotSchema", err)
	}
}

func TestEnhancePerSlotFailureDropsOnlyThatSlot(t *testing.T) {
	chat := &fakeChat{content: slotsJSON(
		slotJSON("sec_1", "p_1", "works", 0.9),
		slotJSON("sec_1", "p_2", "fails", 0.5),
	)}
	searcher := &fakeSearcher{results: map[string][]imagesearch.Candidate{
		"works": {{URL: "http://img/ok.jpg", Title: "OK"}},
		// "fails" is absent, the searcher errors for it.
	}}

	res, err := testEngine(chat, searcher).Enhance(context.Background(), articleHTML)
	if err != nil {
		t.Fatalf("a per-slot failure must not abort the run: %v", err)
	}
	if res.Report.Injected != 1 || len(res.Report.Skipped) != 1 {
		t.Errorf("report: %+v", res.Report)
	}
	if !strings.Contains(res.EnhancedHTML, "http://img/ok.jpg") {
		t.Errorf("surviving slot missing:\n%s", res.EnhancedHTML)
	}
}

func TestEnhanceEmptyCandidatesDropSlot(t *testing.T) {
	chat := &fakeChat{content: slotsJSON(slotJSON("sec_1", "p_1", "rare thing", 0.9))}
	searcher := &fakeSearcher{results: map[string][]imagesearch.Candidate{
		"rare thing": {},
	}}

	res, err := testEngine(chat, searcher).Enhance(context.Background(), articleHTML)
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if res.Report.Injected != 0 || len(res.Report.Skipped) != 1 {
		t.Errorf("report: %+v", res.Report)
	}
}

func TestResolveSlotsPreservesOrderUnderConcurrency(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]imagesearch.Candidate{}}
	var slots []article.Slot
	for i := 0; i < 20; i++ {
		q := fmt.Sprintf("query %d", i)
		searcher.results[q] = []imagesearch.Candidate{{URL: fmt.Sprintf("http://img/%d.jpg", i)}}
		slots = append(slots, article.Slot{SectionID: "sec_1", SearchQuery: q})
	}

	e := testEngine(nil, searcher)
	doc := &article.Document{}
	resolved := e.resolveSlots(context.Background(), doc, slots, 8)

	if len(resolved) != len(slots) {
		t.Fatalf("resolved %d of %d", len(resolved), len(slots))
	}
	for i, r := range resolved {
		want := fmt.Sprintf("http://img/%d.jpg", i)
		if r.ImageURL != want {
			t.Errorf("slot %d resolved to %q, want %q", i, r.ImageURL, want)
		}
	}
}

func TestEnhanceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.html")
	if err := os.WriteFile(path, []byte(articleHTML), 0o644); err != nil {
		t.Fatalf("writing input: %v", err)
	}

	res, err := testEngine(nil, nil).EnhanceFile(context.Background(), path)
	if err != nil {
		t.Fatalf("EnhanceFile: %v", err)
	}
	if res.Document.Title != "Acquisition of Example Corp" {
		t.Errorf("title: %q", res.Document.Title)
	}
}

func TestEnhanceFileUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.xyz")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing input: %v", err)
	}

	_, err := testEngine(nil, nil).EnhanceFile(context.Background(), path)
	if !errors.Is(err, source.ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSlots = -1
	if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestNewDisablesStagesWithoutCredentials(t *testing.T) {
	// Hosted defaults with no keys anywhere: the engine still constructs,
	// with suggestion, search and curation all disabled.
	eng, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e := eng.(*engine)
	if e.suggester != nil {
		t.Error("suggester should be disabled without an api key")
	}
	if e.searcher != nil {
		t.Error("searcher should be disabled without credentials")
	}
	if e.curate.vision != nil {
		t.Error("vision curation should be disabled without an api key")
	}

	res, err := eng.Enhance(context.Background(), articleHTML)
	if err != nil {
		t.Fatalf("Enhance on a disabled engine must pass through: %v", err)
	}
	if res.Report.Injected != 0 {
		t.Errorf("report: %+v", res.Report)
	}
}

func TestNewWithLocalProviders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Suggestion = LLMConfig{Provider: "ollama", Model: "llama3.1:8b"}
	cfg.Vision = LLMConfig{Provider: "ollama", Model: "llama3.2-vision"}

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e := eng.(*engine)
	if e.suggester == nil {
		t.Error("local provider needs no api key, suggester should be live")
	}
	if e.curate.vision == nil {
		t.Error("local vision provider should be live")
	}
}
