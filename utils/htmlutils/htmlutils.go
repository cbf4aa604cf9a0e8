// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package htmlutils provides utility functions for working with HTML.
package htmlutils

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Text concatenates the trimmed text nodes under n, separated by spaces.
func Text(n *html.Node) string {
	var sb strings.Builder

	node2string(n, &sb)

	return sb.String()
}

func node2string(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		tmp := strings.Join(strings.Fields(n.Data), " ")
		if tmp == "" {
			return
		}

		if sb.Len() != 0 {
			sb.WriteByte(' ')
		}

		sb.WriteString(tmp)

		return
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		node2string(child, sb)
	}
}

// IsHTML reports whether a Content-Type value is text/html.
func IsHTML(media string) bool {
	const expectedMedia = "text/html"

	return strings.EqualFold(
		expectedMedia,
		media[0:min(len(media), len(expectedMedia))],
	)
}

// AsReader converts an HTTP response body to an io.Reader with the correct charset.
func AsReader(resp *http.Response) (io.Reader, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	media := resp.Header.Get("Content-Type")
	if !IsHTML(media) {
		return nil, fmt.Errorf("media type is %s", media)
	}

	rr, err := charset.NewReader(resp.Body, media)
	if err != nil {
		return nil, err
	}

	return rr, nil
}

// AsNode parses an io.Reader as an HTML node.
func AsNode(r io.Reader) (*html.Node, error) {
	n, err := html.Parse(r)
	if nil != err {
		return nil, fmt.Errorf("parsing body as HTML: %w", err)
	}

	return n, nil
}

// Title returns the text of the first <title> element, or "".
func Title(n *html.Node) string {
	if n.Type == html.ElementNode && strings.EqualFold("title", n.Data) {
		return Text(n)
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if t := Title(child); t != "" {
			return t
		}
	}

	return ""
}

// LocalRefs returns the same-origin absolute paths referenced by <link href>,
// <script src> and <img src> elements, in document order and without
// duplicates.
func LocalRefs(n *html.Node) []string {
	var (
		refs []string
		seen = map[string]bool{}
	)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			var attr string

			switch strings.ToLower(n.Data) {
			case "link":
				attr = "href"
			case "script", "img":
				attr = "src"
			}

			for _, a := range n.Attr {
				if attr == "" || !strings.EqualFold(a.Key, attr) {
					continue
				}

				v := a.Val
				if strings.HasPrefix(v, "/") && !strings.HasPrefix(v, "//") && !seen[v] {
					seen[v] = true
					refs = append(refs, v)
				}
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	walk(n)

	return refs
}
