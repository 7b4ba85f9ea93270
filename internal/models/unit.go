package models

import "unicode/utf8"

// Well-known metadata names written by the extraction pipeline.
const (
	ContentType          = "Content-Type"
	ResourceName         = "resourceName"
	EmbeddedDepth        = "embeddedDepth"
	EmbeddedResourcePath = "embeddedResourcePath"
	DigestMD5            = "digest:MD5"
	DigestSHA256         = "digest:SHA256"
)

// Failure describes why decoding a unit stopped early.
type Failure struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// String renders the failure as "category: message".
func (f *Failure) String() string {
	if f.Message == "" {
		return f.Category
	}
	return f.Category + ": " + f.Message
}

// Unit is one node of a document's embedding tree. Index 0 is the root;
// the rest follow in pre-order.
type Unit struct {
	Index    int
	Metadata *Metadata
	// Content is nil when content was suppressed.
	Content              *string
	WriteLimitReached    bool
	EmbeddedLimitReached bool
	Failure              *Failure
}

// ContentLength returns the number of characters in Content.
func (u *Unit) ContentLength() int {
	if u.Content == nil {
		return 0
	}
	return utf8.RuneCountInString(*u.Content)
}

// Result is the ordered list of units extracted from one document.
type Result struct {
	Units []*Unit
}

// Len returns the number of units.
func (r *Result) Len() int {
	return len(r.Units)
}

// Root returns the first unit, or nil for an empty result.
func (r *Result) Root() *Unit {
	if len(r.Units) == 0 {
		return nil
	}
	return r.Units[0]
}

// Failures returns the units whose decoding failed.
func (r *Result) Failures() []*Unit {
	var out []*Unit
	for _, u := range r.Units {
		if u.Failure != nil {
			out = append(out, u)
		}
	}
	return out
}
