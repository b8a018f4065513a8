package diagfmt

import (
	"encoding/json"
	"io"

	"quill/internal/diag"
	"quill/internal/source"
)

type jsonPos struct {
	Line uint32 `json:"line"`
	Col  uint32 `json:"col"`
}

type jsonNote struct {
	Path    string  `json:"path"`
	Start   jsonPos `json:"start"`
	Message string  `json:"message"`
}

type jsonDiag struct {
	Severity string     `json:"severity"`
	Code     string     `json:"code"`
	Path     string     `json:"path"`
	Start    jsonPos    `json:"start"`
	End      jsonPos    `json:"end"`
	Message  string     `json:"message"`
	Notes    []jsonNote `json:"notes,omitempty"`
}

// JSON writes the bag as one JSON array, one object per diagnostic, for
// editor and CI consumption.
func JSON(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts JSONOpts) error {
	items := bag.Items()
	if opts.Max > 0 && len(items) > opts.Max {
		items = items[:opts.Max]
	}
	out := make([]jsonDiag, 0, len(items))
	for _, d := range items {
		start, end := fs.Resolve(d.Primary)
		jd := jsonDiag{
			Severity: d.Severity.String(),
			Code:     d.Code.String(),
			Path:     displayPath(fs.Get(d.Primary.File).Path, opts.PathMode),
			Start:    jsonPos{Line: start.Line, Col: start.Col},
			End:      jsonPos{Line: end.Line, Col: end.Col},
			Message:  d.Message,
		}
		if opts.IncludeNotes {
			for _, n := range d.Notes {
				nStart, _ := fs.Resolve(n.Span)
				jd.Notes = append(jd.Notes, jsonNote{
					Path:    displayPath(fs.Get(n.Span.File).Path, opts.PathMode),
					Start:   jsonPos{Line: nStart.Line, Col: nStart.Col},
					Message: n.Msg,
				})
			}
		}
		out = append(out, jd)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
