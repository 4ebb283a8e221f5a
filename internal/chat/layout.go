package chat

import "fmt"

// Layout selects the front-end variant. Both variants drive the same state
// machine; they differ in which context sources are offered.
type Layout string

const (
	// LayoutSingle offers file uploads only.
	LayoutSingle Layout = "single"
	// LayoutDual offers a file or a URL, one at a time.
	LayoutDual Layout = "dual"
)

func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case LayoutSingle, LayoutDual:
		return Layout(s), nil
	case "":
		return LayoutSingle, nil
	}
	return "", fmt.Errorf("unknown layout %q (want single or dual)", s)
}

func (l Layout) greeting() string {
	if l == LayoutDual {
		return "Hello! I am Docury. You can ask me questions about a document you upload or a web page you link. Attach a file or submit a URL to begin."
	}
	return "Hello! I am Docury. You can ask me questions about the document you upload. Attach a file to begin."
}

// Affordances are the controls a front end should currently offer.
type Affordances struct {
	Upload bool
	Index  bool
	Send   bool
}

// Affordances derives which controls are enabled for s. This is the only place
// the one-source-at-a-time rule is applied to uploads in the single layout.
func (l Layout) Affordances(s State) Affordances {
	free := s.Context.Kind == SourceNone && !s.Busy()
	return Affordances{
		Upload: free,
		Index:  l == LayoutDual && free,
		Send:   !s.Busy(),
	}
}

func (l Layout) canBeginUpload(s State) bool {
	if s.Uploading {
		return false
	}
	if l == LayoutDual {
		return !s.Indexing && s.Context.Kind == SourceNone
	}
	return true
}

func (l Layout) canBeginIndex(s State) bool {
	return l == LayoutDual && !s.Indexing && !s.Uploading && s.Context.Kind == SourceNone
}
