package markup

import (
	"strconv"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"github.com/japaniel/termbank/pkg/kana"
)

// WrapExamples groups runs of consecutive example elements below the first
// bodySelector match into collapsible details blocks whose summary reads
// 例文N件 (N in full-width digits). Whitespace between examples does not
// break a run. It returns the number of groups created.
func WrapExamples(root *html.Node, bodySelector, exampleSelector string) int {
	body := Find(root, bodySelector)
	if body == nil {
		return 0
	}
	examples := FindAll(body, exampleSelector)
	if len(examples) == 0 {
		return 0
	}

	var groups [][]*html.Node
	current := []*html.Node{examples[0]}
	for _, ex := range examples[1:] {
		if consecutive(current[len(current)-1], ex) {
			current = append(current, ex)
			continue
		}
		groups = append(groups, current)
		current = []*html.Node{ex}
	}
	groups = append(groups, current)

	for _, g := range groups {
		wrap(g)
	}
	return len(groups)
}

// consecutive reports whether b is the next non-blank sibling of a.
func consecutive(a, b *html.Node) bool {
	for n := a.NextSibling; n != nil; n = n.NextSibling {
		if IsBlank(n) {
			continue
		}
		return n == b
	}
	return false
}

func wrap(group []*html.Node) {
	first := group[0]
	if first.Parent == nil {
		return
	}

	details := dom.CreateElement("details")
	summary := dom.CreateElement("summary")
	label := "例文" + kana.FullWidthDigits(strconv.Itoa(len(group))) + "件"
	dom.AppendChild(summary, dom.CreateTextNode(label))
	dom.AppendChild(details, summary)

	first.Parent.InsertBefore(details, first)
	for _, ex := range group {
		dom.AppendChild(details, ex)
	}
}
