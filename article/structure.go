package article

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoArticle is returned when the input HTML is too malformed to locate an
// <article> or <body> element to structure.
var ErrNoArticle = errors.New("article: no <article> or <body> element found")

// Structure parses article HTML, assigns stable ids to headings and
// paragraphs, and returns the annotated HTML together with the structured
// Document. Elements that already carry an id keep it verbatim, so running
// Structure on its own output is idempotent: no new ids are synthesized and
// the Document content is unchanged.
//
// Headings h2-h6 open new sections in document order. The first <h1> is the
// article title, not a section. Paragraphs appearing before any heading are
// collected into an implicit "Introduction" section whose anchor is a hidden
// <div> injected ahead of the first such paragraph.
func Structure(src string) (string, *Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", nil, fmt.Errorf("parsing html: %w", err)
	}

	scope := findArticle(root)
	if scope == nil {
		scope = findElement(root, "body")
	}
	if scope == nil {
		return "", nil, ErrNoArticle
	}

	titleNode := findElement(scope, "h1")
	title := ""
	if titleNode != nil {
		title = textContent(titleNode)
	}

	s := &structurer{
		doc:   &Document{Title: title, Sections: []Section{}},
		used:  collectIDs(root),
		title: titleNode,
	}
	s.walk(scope)

	var buf strings.Builder
	if err := html.Render(&buf, root); err != nil {
		return "", nil, fmt.Errorf("rendering annotated html: %w", err)
	}
	return buf.String(), s.doc, nil
}

// structurer threads the traversal state through the walk. Counters are
// scoped to a single Structure call, never shared between documents.
type structurer struct {
	doc     *Document
	used    map[string]bool
	title   *html.Node
	current *Section
	secN    int
	paraN   int
}

func (s *structurer) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if n == s.title {
			return
		}
		if level := headingLevel(n.Data); level >= 2 {
			s.openSection(n, level)
			return
		}
		if n.Data == "div" && getAttr(n, anchorAttr) != "" {
			s.reopenAnchorSection(n)
			return
		}
		if isParagraphLike(n) {
			s.addParagraph(n)
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.walk(c)
	}
}

func (s *structurer) openSection(n *html.Node, level int) {
	id := getAttr(n, "id")
	if id == "" {
		id = s.nextID("sec", &s.secN)
		setAttr(n, "id", id)
	}
	s.doc.Sections = append(s.doc.Sections, Section{
		ID:         id,
		Level:      level,
		Heading:    textContent(n),
		Paragraphs: []Paragraph{},
	})
	s.current = &s.doc.Sections[len(s.doc.Sections)-1]
}

func (s *structurer) addParagraph(n *html.Node) {
	text := textContent(n)
	if text == "" {
		// Whitespace-only paragraphs get no id and are not recorded;
		// they make useless placement targets.
		return
	}

	id := getAttr(n, "id")
	if id == "" {
		id = s.nextID("p", &s.paraN)
		setAttr(n, "id", id)
	}

	if s.current == nil {
		s.openImplicitSection(n)
	}
	s.current.Paragraphs = append(s.current.Paragraphs, Paragraph{ID: id, Text: text})
}

// anchorAttr marks the hidden <div> injected for an implicit section, so a
// re-run recognizes the anchor and reuses its id instead of synthesizing a
// new one.
const anchorAttr = "data-section-anchor"

// openImplicitSection handles paragraphs that appear before the first
// heading. A hidden <div> anchor is injected so slots can still target the
// section by id in the annotated HTML.
func (s *structurer) openImplicitSection(n *html.Node) {
	id := s.nextID("sec", &s.secN)
	anchor := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "id", Val: id},
			{Key: anchorAttr, Val: "Introduction"},
		},
	}
	if n.Parent != nil {
		n.Parent.InsertBefore(anchor, n)
	}
	s.doc.Sections = append(s.doc.Sections, Section{
		ID:         id,
		Level:      2,
		Heading:    "Introduction",
		Paragraphs: []Paragraph{},
	})
	s.current = &s.doc.Sections[len(s.doc.Sections)-1]
}

// reopenAnchorSection restores an implicit section from its anchor div on a
// re-run over previously annotated HTML.
func (s *structurer) reopenAnchorSection(n *html.Node) {
	s.doc.Sections = append(s.doc.Sections, Section{
		ID:         getAttr(n, "id"),
		Level:      2,
		Heading:    getAttr(n, anchorAttr),
		Paragraphs: []Paragraph{},
	})
	s.current = &s.doc.Sections[len(s.doc.Sections)-1]
}

// nextID synthesizes the next free id for a prefix, skipping over any value
// already present in the document so synthesized ids never collide with
// pre-existing ones.
func (s *structurer) nextID(prefix string, counter *int) string {
	for {
		*counter++
		id := fmt.Sprintf("%s_%d", prefix, *counter)
		if !s.used[id] {
			s.used[id] = true
			return id
		}
	}
}

// isParagraphLike reports whether the node is a paragraph for structuring
// purposes: a <p>, or a styled block span as used by some article sources
// instead of <p> tags.
func isParagraphLike(n *html.Node) bool {
	switch n.Data {
	case "p":
		return true
	case "span":
		classes := strings.Fields(getAttr(n, "class"))
		var block, spaced bool
		for _, c := range classes {
			switch c {
			case "block":
				block = true
			case "mb-4":
				spaced = true
			}
		}
		return block && spaced
	}
	return false
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// findArticle prefers an <article> marked up as a schema.org Article, then
// any <article>.
func findArticle(root *html.Node) *html.Node {
	var plain *html.Node
	var f func(*html.Node) *html.Node
	f = func(n *html.Node) *html.Node {
		if n.Type == html.ElementNode && n.Data == "article" {
			if strings.Contains(getAttr(n, "itemtype"), "schema.org/Article") {
				return n
			}
			if plain == nil {
				plain = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := f(c); found != nil {
				return found
			}
		}
		return nil
	}
	if n := f(root); n != nil {
		return n
	}
	return plain
}

func findElement(root *html.Node, tag string) *html.Node {
	if root.Type == html.ElementNode && root.Data == tag {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findElement(c, tag); n != nil {
			return n
		}
	}
	return nil
}

// collectIDs gathers every id attribute in the tree, pre-annotated or not.
func collectIDs(root *html.Node) map[string]bool {
	ids := make(map[string]bool)
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := getAttr(n, "id"); id != "" {
				ids[id] = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(root)
	return ids
}

// textContent extracts the trimmed text of a node and its children.
func textContent(n *html.Node) string {
	var parts []string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.Join(parts, " ")
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
