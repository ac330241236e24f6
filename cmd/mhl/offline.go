package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hazyhaar/mhl/dom"
	"github.com/hazyhaar/mhl/export"
	"github.com/hazyhaar/mhl/highlight"
	"github.com/hazyhaar/mhl/render"
	"github.com/hazyhaar/mhl/safe"
)

// load parses the page and draws the highlight list on it, synchronously.
func load(pagePath, highlightsPath string) (*dom.Document, []highlight.Highlight, error) {
	src, err := readFile(pagePath)
	if err != nil {
		return nil, nil, err
	}
	doc, err := dom.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", pagePath, err)
	}

	var list []highlight.Highlight
	if highlightsPath != "" {
		data, err := readFile(highlightsPath)
		if err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", highlightsPath, err)
		}
	}

	r := render.New(doc)
	r.ApplyNow(list)
	if st := r.Stats(); st.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "mhl: %d highlight(s) did not resolve\n", st.Skipped)
	}
	return doc, list, nil
}

func renderFile(w io.Writer, pagePath, highlightsPath string) error {
	doc, _, err := load(pagePath, highlightsPath)
	if err != nil {
		return err
	}
	return doc.Render(w)
}

func exportFile(w io.Writer, pagePath, highlightsPath string) error {
	doc, list, err := load(pagePath, highlightsPath)
	if err != nil {
		return err
	}
	md, err := export.New().Markdown(doc, "")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, md); err != nil {
		return err
	}
	if q := export.Quotes(list); q != "" {
		_, err = io.WriteString(w, "\n\n## Highlights\n\n"+q)
	}
	return err
}

// maxInput caps the size of page and highlight files.
const maxInput = 64 << 20

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := safe.ReadAll(f, maxInput)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
