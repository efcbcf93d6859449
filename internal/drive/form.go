package drive

import (
	"strings"

	"golang.org/x/net/html"
)

const confirmFormID = "download-form"

// confirmInfo holds the hidden fields of the large-file interstitial form.
type confirmInfo struct {
	token string
	uuid  string
}

// parseConfirmForm scans an HTML page for the download confirmation form and
// its hidden confirm/uuid inputs. Both values must be present for the result
// to be usable.
func parseConfirmForm(page string) (confirmInfo, bool) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return confirmInfo{}, false
	}

	form := findFormByID(doc, confirmFormID)
	if form == nil {
		return confirmInfo{}, false
	}

	info := confirmInfo{
		token: inputValue(form, "confirm"),
		uuid:  inputValue(form, "uuid"),
	}

	if info.token == "" || info.uuid == "" {
		return confirmInfo{}, false
	}

	return info, true
}

func findFormByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && n.Data == "form" && attr(n, "id") == id {
		return n
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if form := findFormByID(c, id); form != nil {
			return form
		}
	}

	return nil
}

// inputValue returns the value attribute of the first input element under n
// with the given name.
func inputValue(n *html.Node, name string) string {
	if n.Type == html.ElementNode && n.Data == "input" && attr(n, "name") == name {
		return attr(n, "value")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v := inputValue(c, name); v != "" {
			return v
		}
	}

	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}

	return ""
}
