package ccda

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// MalformedDocumentError means the input is not parseable as XML at all.
// Fatal: the run aborts before any table is touched.
type MalformedDocumentError struct {
	Err error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document: %v", e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// DocumentStructureError means the document parsed but lacks the minimal
// top-level containers needed to attempt section location. Fatal.
type DocumentStructureError struct {
	Reason string
}

func (e *DocumentStructureError) Error() string {
	return fmt.Sprintf("document structure: %s", e.Reason)
}

// Document is a parsed C-CDA document. Navigation goes through the generic
// element tree; tag comparisons use local names so prefixed and default
// namespace exporters look the same.
type Document struct {
	root *etree.Element
	body *etree.Element
}

// Parse reads raw document bytes into a navigable tree. The root must be a
// ClinicalDocument carrying a component/structuredBody; everything else
// about the layout is left to the section locator.
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &MalformedDocumentError{Err: err}
	}
	root := doc.Root()
	if root == nil {
		return nil, &MalformedDocumentError{Err: fmt.Errorf("no root element")}
	}
	if root.Tag != "ClinicalDocument" {
		return nil, &DocumentStructureError{
			Reason: fmt.Sprintf("root element is %q, want ClinicalDocument", root.Tag),
		}
	}
	body := findFirstDescendant(root, "structuredBody")
	if body == nil {
		return nil, &DocumentStructureError{Reason: "no component/structuredBody"}
	}
	return &Document{root: root, body: body}, nil
}

// Title returns the document-level title, if present.
func (d *Document) Title() string {
	if t := childByTag(d.root, "title"); t != nil {
		return strings.TrimSpace(t.Text())
	}
	return ""
}

// DocumentID returns the root id extension or root attribute, used for
// load provenance. Empty when the exporter omitted it.
func (d *Document) DocumentID() string {
	id := childByTag(d.root, "id")
	if id == nil {
		return ""
	}
	if ext := id.SelectAttrValue("extension", ""); ext != "" {
		return ext
	}
	return id.SelectAttrValue("root", "")
}

// --- generic tree helpers ---

func childByTag(e *etree.Element, tag string) *etree.Element {
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// findDescendants collects all descendants with the given local tag name,
// in document order.
func findDescendants(e *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
		out = append(out, findDescendants(c, tag)...)
	}
	return out
}

func findFirstDescendant(e *etree.Element, tag string) *etree.Element {
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			return c
		}
		if found := findFirstDescendant(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// textContent flattens the text of an element and its descendants,
// whitespace-joined in document order.
func textContent(e *etree.Element) string {
	if e == nil {
		return ""
	}
	var parts []string
	if t := strings.TrimSpace(e.Text()); t != "" {
		parts = append(parts, t)
	}
	for _, c := range e.ChildElements() {
		if t := textContent(c); t != "" {
			parts = append(parts, t)
		}
		if tail := strings.TrimSpace(c.Tail()); tail != "" {
			parts = append(parts, tail)
		}
	}
	return strings.Join(parts, " ")
}

func attr(e *etree.Element, name string) string {
	if e == nil {
		return ""
	}
	return e.SelectAttrValue(name, "")
}
