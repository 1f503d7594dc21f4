// Package extract locates and flattens HTML tables into raw tabular data.
package extract

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/visitum/visitum-cli/internal/model"
)

// Table parses the document and returns the table most likely to hold the
// data of interest: the first table whose text contains match, falling back
// to the largest table by cell count. Returns an error if the document has no
// tables at all.
func Table(doc string, match string) (*model.RawTable, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}

	tables := collectTables(root)
	if len(tables) == 0 {
		return nil, eris.New("extract: no tables in document")
	}

	node := pickTable(tables, match)
	raw := flattenTable(node)
	if len(raw.Columns) == 0 && len(raw.Rows) == 0 {
		return nil, eris.New("extract: selected table has no cells")
	}

	zap.L().Debug("extract: table selected",
		zap.Int("candidates", len(tables)),
		zap.Int("columns", len(raw.Columns)),
		zap.Int("rows", len(raw.Rows)),
	)
	return raw, nil
}

func collectTables(root *html.Node) []*html.Node {
	var tables []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			tables = append(tables, n)
			// Nested tables count as their own candidates.
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return tables
}

func pickTable(tables []*html.Node, match string) *html.Node {
	if match != "" {
		needle := strings.ToLower(match)
		for _, t := range tables {
			if strings.Contains(strings.ToLower(nodeText(t)), needle) {
				return t
			}
		}
	}

	best := tables[0]
	bestCells := countCells(best)
	for _, t := range tables[1:] {
		if n := countCells(t); n > bestCells {
			best, bestCells = t, n
		}
	}
	return best
}

func countCells(table *html.Node) int {
	count := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th") {
			count++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return count
}

// flattenTable turns a table node into column labels and rows of text cells.
// The first row containing a <th> becomes the header; every later row
// contributes its cells as values with nested markup reduced to text.
func flattenTable(table *html.Node) *model.RawTable {
	raw := &model.RawTable{}
	for _, tr := range collectRows(table) {
		cells, isHeader := rowCells(tr)
		if len(cells) == 0 {
			continue
		}
		if isHeader && len(raw.Columns) == 0 {
			raw.Columns = cells
			continue
		}
		raw.Rows = append(raw.Rows, cells)
	}
	return raw
}

func collectRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "tr":
				rows = append(rows, n)
				return
			case "table":
				if n != table {
					// Rows of a nested table belong to that table.
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func rowCells(tr *html.Node) (cells []string, isHeader bool) {
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "th":
			isHeader = true
			cells = append(cells, cellText(c))
		case "td":
			cells = append(cells, cellText(c))
		}
	}
	return cells, isHeader
}

func cellText(n *html.Node) string {
	return strings.Join(strings.Fields(nodeText(n)), " ")
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "style" || n.Data == "script") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
