package datacite

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// namePosition is a nameType attribute and where it was written.
type namePosition struct {
	source  string // field path, e.g. "creators[0].nameType"
	element string
	value   string
	line    int
	column  int
}

// scanNameTypes walks the document once more to record the line and column
// of every creator and contributor nameType, grouped per <resource>.
// Related items are skipped; their names are not validated.
func scanNameTypes(data []byte) ([][]namePosition, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var (
		out          [][]namePosition
		stack        []string
		resourceAt   = -1
		creators     int
		contributors int
	)

	parent := func(up int) string {
		i := len(stack) - 1 - up
		if i < 0 {
			return ""
		}
		return stack[i]
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			depth := len(stack) - 1

			if t.Name.Local == "resource" && resourceAt < 0 {
				resourceAt = depth
				creators, contributors = 0, 0
				out = append(out, nil)
				continue
			}
			if resourceAt < 0 {
				continue
			}

			switch {
			case depth == resourceAt+2 && t.Name.Local == "creator" && parent(1) == "creators":
				creators++
			case depth == resourceAt+2 && t.Name.Local == "contributor" && parent(1) == "contributors":
				contributors++
			case depth == resourceAt+3 && t.Name.Local == "creatorName" && parent(1) == "creator":
				if v, ok := attr(t, "nameType"); ok {
					line, col := decoder.InputPos()
					out[len(out)-1] = append(out[len(out)-1], namePosition{
						source:  fmt.Sprintf("creators[%d].nameType", creators-1),
						element: t.Name.Local,
						value:   v,
						line:    line,
						column:  col,
					})
				}
			case depth == resourceAt+3 && t.Name.Local == "contributorName" && parent(1) == "contributor":
				if v, ok := attr(t, "nameType"); ok {
					line, col := decoder.InputPos()
					out[len(out)-1] = append(out[len(out)-1], namePosition{
						source:  fmt.Sprintf("contributors[%d].nameType", contributors-1),
						element: t.Name.Local,
						value:   v,
						line:    line,
						column:  col,
					})
				}
			}

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if len(stack) <= resourceAt {
				resourceAt = -1
			}
		}
	}

	return out, nil
}

func attr(start xml.StartElement, local string) (string, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == local && a.Name.Space == "" {
			return a.Value, true
		}
	}
	return "", false
}
