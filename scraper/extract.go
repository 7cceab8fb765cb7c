package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Literal markers located in the portal's login pages.
const (
	MarkerVerificationToken = `name="__RequestVerificationToken" type="hidden" value="`
	MarkerSchoolID          = "var s_schoolID = "
	MarkerStudentID         = "?sid="
	MarkerAccessToken       = "var accessToken = "

	verificationTokenField = "__RequestVerificationToken"
)

// TokenExtractor pulls a single value out of raw HTML. Implementations return
// a *ParseError when the value cannot be found.
type TokenExtractor interface {
	Extract(html, marker string) (string, error)
}

// MarkerExtractor returns the text between a literal marker and a terminator.
type MarkerExtractor struct {
	// Terminators maps a marker to the string ending its value. Markers
	// without an entry end at the next double quote.
	Terminators map[string]string
}

// DefaultExtractor knows the terminators used by the portal's markers.
func DefaultExtractor() MarkerExtractor {
	return MarkerExtractor{Terminators: map[string]string{
		MarkerSchoolID: ";",
	}}
}

func (m MarkerExtractor) Extract(html, marker string) (string, error) {
	_, rest, found := strings.Cut(html, marker)
	if !found {
		return "", &ParseError{What: "marker " + marker}
	}
	if marker == MarkerAccessToken {
		// var accessToken = "..."; the value is the first quoted string.
		_, rest, found = strings.Cut(rest, `"`)
		if !found {
			return "", &ParseError{What: "access token value"}
		}
	}
	term, ok := m.Terminators[marker]
	if !ok {
		term = `"`
	}
	value, _, _ := strings.Cut(rest, term)
	return value, nil
}

// FormExtractor reads the value of a named form input.
// The marker passed to Extract is the input name.
type FormExtractor struct{}

func (FormExtractor) Extract(html, name string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", &ParseError{What: "login form", Err: err}
	}
	value, ok := doc.Find(`input[name="` + name + `"]`).First().Attr("value")
	if !ok {
		return "", &ParseError{What: "form input " + name}
	}
	return value, nil
}
