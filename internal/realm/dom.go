package realm

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
)

// Fixed containers created when the capability object is installed.
const (
	ButtonsID     = "modloader-buttons"
	ConfigPanelID = "modloader-config-panel"
	ModalRootID   = "modloader-modal-root"
)

const blankPage = "<!DOCTYPE html><html><head></head><body></body></html>"

// DOM is the page document. It is owned by the loop goroutine.
type DOM struct {
	doc       *goquery.Document
	sanitizer *bluemonday.Policy
}

// PanelField is one input of a config panel.
type PanelField struct {
	Key   string
	Label string
	Type  string
	Value interface{}
}

// ParseDOM parses page as the document. An empty page is a blank document.
func ParseDOM(page string) (*DOM, error) {
	if strings.TrimSpace(page) == "" {
		page = blankPage
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &DOM{doc: doc, sanitizer: bluemonday.UGCPolicy()}, nil
}

// HTML serialises the whole document.
func (d *DOM) HTML() string {
	html, err := goquery.OuterHtml(d.doc.Selection)
	if err != nil {
		return ""
	}
	return html
}

// Query returns the elements matching a CSS selector.
func (d *DOM) Query(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// XPath returns the elements matching an XPath expression.
func (d *DOM) XPath(expr string) (*goquery.Selection, error) {
	nodes, err := htmlquery.QueryAll(d.doc.Nodes[0], expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	return d.doc.FindNodes(nodes...), nil
}

func (d *DOM) ensureContainers() {
	body := d.doc.Find("body").First()
	for _, id := range []string{ButtonsID, ConfigPanelID, ModalRootID} {
		if d.byID(id).Length() == 0 {
			body.AppendHtml(`<div id="` + id + `"></div>`)
		}
	}
}

func (d *DOM) byID(id string) *goquery.Selection {
	return d.doc.Find("#" + id)
}

func childWithAttr(parent *goquery.Selection, attr, value string) *goquery.Selection {
	return parent.Children().FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr(attr)
		return ok && v == value
	})
}

func (d *DOM) button(id string) *goquery.Selection {
	return childWithAttr(d.byID(ButtonsID), "data-button-id", id)
}

// setButton creates or relabels the button with id.
func (d *DOM) setButton(id, label string) {
	sel := d.button(id)
	if sel.Length() == 0 {
		container := d.byID(ButtonsID)
		container.AppendHtml(`<button type="button" class="modloader-button"></button>`)
		sel = container.Children().Last()
		sel.SetAttr("data-button-id", id)
	}
	sel.SetText(label)
}

func (d *DOM) removeButton(id string) bool {
	sel := d.button(id)
	if sel.Length() == 0 {
		return false
	}
	sel.Remove()
	return true
}

func (d *DOM) showModal(title, body string) {
	root := d.byID(ModalRootID)
	root.Empty()
	root.AppendHtml(`<div class="modloader-modal" role="dialog"><h2 class="modloader-modal-title"></h2><div class="modloader-modal-body"></div></div>`)
	root.Find(".modloader-modal-title").SetText(title)
	root.Find(".modloader-modal-body").SetHtml(d.sanitizer.Sanitize(body))
}

func (d *DOM) closeModal() bool {
	root := d.byID(ModalRootID)
	open := root.Children().Length() > 0
	root.Empty()
	return open
}

// renderPanel replaces the config panel with id.
func (d *DOM) renderPanel(id, title string, fields []PanelField) {
	container := d.byID(ConfigPanelID)
	childWithAttr(container, "data-panel-id", id).Remove()

	container.AppendHtml(`<form class="modloader-config"><h3></h3></form>`)
	form := container.Children().Last()
	form.SetAttr("data-panel-id", id)
	form.Find("h3").SetText(title)

	for _, f := range fields {
		form.AppendHtml(`<label class="modloader-field"><span></span><input/></label>`)
		field := form.Children().Last()
		field.Find("span").SetText(f.Label)

		input := field.Find("input")
		input.SetAttr("name", f.Key)
		input.SetAttr("type", inputType(f.Type))
		switch v := f.Value.(type) {
		case nil:
		case bool:
			if v {
				input.SetAttr("checked", "checked")
			}
		default:
			input.SetAttr("value", fmt.Sprint(v))
		}
	}
}

func inputType(t string) string {
	switch t {
	case "checkbox", "boolean":
		return "checkbox"
	case "number", "range", "color":
		return t
	default:
		return "text"
	}
}
