package vendorform

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strings"

	"github.com/phrazzld/concrawl/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrDuplicateVendor is reported for a vendor ID seen twice on one page.
var ErrDuplicateVendor = errors.New("duplicate vendor id")

// EntryError describes a vendor form that was dropped.
type EntryError struct {
	// Index is the position of the form among the page's vendor forms
	Index int
	ID    string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("vendor form %d (%q): %v", e.Index, e.ID, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Parse reads every vendor form in the document. Forms that do not describe
// a valid vendor are dropped and reported through the returned error, which
// joins one *EntryError per dropped form; the valid vendors are returned
// either way. Only a document that cannot be read yields no vendors.
func Parse(r io.Reader) ([]domain.Vendor, error) {
	return ParseWithBase(r, nil)
}

// ParseWithBase is Parse with relative links resolved against base.
func ParseWithBase(r io.Reader, base *url.URL) ([]domain.Vendor, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vendor page: %w", err)
	}

	var (
		vendors []domain.Vendor
		errs    []error
		seen    = make(map[string]bool)
		index   int
	)
	for form := range vendorForms(doc) {
		v := readForm(form, base)
		switch err := v.Validate(); {
		case err != nil:
			errs = append(errs, &EntryError{Index: index, ID: v.ID, Err: err})
		case seen[v.ID]:
			errs = append(errs, &EntryError{Index: index, ID: v.ID, Err: ErrDuplicateVendor})
		default:
			seen[v.ID] = true
			vendors = append(vendors, v)
		}
		index++
	}
	return vendors, errors.Join(errs...)
}

// vendorForms yields <form class="vendor"> nodes in document order.
func vendorForms(doc *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		var walk func(n *html.Node) bool
		walk = func(n *html.Node) bool {
			if n.Type == html.ElementNode && n.DataAtom == atom.Form && hasClass(n, "vendor") {
				return yield(n)
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(doc)
	}
}

func readForm(form *html.Node, base *url.URL) domain.Vendor {
	fields := make(map[string]string)
	var images []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Input, atom.Textarea, atom.Select:
				name := attr(n, "name")
				value := attr(n, "value")
				if n.DataAtom == atom.Textarea {
					value = text(n)
				}
				if name != "" && value != "" {
					if _, ok := fields[name]; !ok {
						fields[name] = strings.TrimSpace(value)
					}
				}
			case atom.Img:
				if src := attr(n, "src"); src != "" {
					images = append(images, resolve(base, src))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)

	for _, a := range form.Attr {
		if name, ok := strings.CutPrefix(a.Key, "data-"); ok && a.Val != "" {
			fields[name] = strings.TrimSpace(a.Val)
		}
	}

	v := domain.Vendor{
		ID:     fields["id"],
		Name:   fields["name"],
		Table:  fields["table"],
		Handle: strings.TrimPrefix(fields["handle"], "@"),
		Images: images,
	}
	if site := fields["website"]; site != "" {
		v.Website = resolve(base, site)
	}
	return v
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
