// Package classify decides which of the supplied documents is the CV and
// which is the job posting, without trusting the stored file type alone.
package classify

import (
	"errors"
	"strings"

	"github.com/applypilot/applypilot/internal/docstore"
)

// ErrClassificationFailed is returned when fewer than two documents with
// usable text were supplied.
var ErrClassificationFailed = errors.New("classification failed: two documents with extracted text are required")

// Result is the role assignment for one document pair.
type Result struct {
	CV  *docstore.Document
	Job *docstore.Document
}

// Strategy is a pure classification function over document metadata and
// content. Implementations must be deterministic.
type Strategy interface {
	Classify(docs []*docstore.Document) (*Result, error)
}

// indicators hold the role-revealing substrings scanned in file names and
// lower-cased text. Localized (French) phrases sit next to the English ones
// because uploads come in both languages.
type indicators struct {
	names []string
	texts []string
}

type heuristic struct {
	cv  indicators
	job indicators
}

// NewHeuristic returns the default substring-scanning strategy.
func NewHeuristic() Strategy {
	return &heuristic{
		cv: indicators{
			names: []string{"cv", "resume", "curriculum"},
			texts: []string{
				"professional experience", "education", "skills", "professional profile",
				"expérience professionnelle", "formation", "compétences", "profil professionnel",
			},
		},
		job: indicators{
			names: []string{"offer", "offre", "job", "position", "poste"},
			texts: []string{
				"job description", "responsibilities", "desired profile", "we offer", "you are",
				"description du poste", "missions", "profil recherché", "nous offrons", "vous êtes",
			},
		},
	}
}

func (h *heuristic) Classify(docs []*docstore.Document) (*Result, error) {
	usable := make([]*docstore.Document, 0, len(docs))
	for _, doc := range docs {
		if doc != nil && strings.TrimSpace(doc.Text) != "" {
			usable = append(usable, doc)
		}
	}

	if len(usable) < 2 {
		return nil, ErrClassificationFailed
	}

	result := &Result{}

	// Stored tags win when they identify one document per role.
	byType := func(fileType string) *docstore.Document {
		var found *docstore.Document
		for _, doc := range usable {
			if doc.FileType != fileType {
				continue
			}
			if found != nil {
				return nil
			}
			found = doc
		}
		return found
	}

	taggedCV := byType(docstore.FileTypeCV)
	taggedJob := byType(docstore.FileTypeJobOffer)
	if taggedCV != nil && taggedJob != nil && taggedCV != taggedJob {
		return &Result{CV: taggedCV, Job: taggedJob}, nil
	}

	// Otherwise scan names and content; a document takes the first role
	// whose indicators match while that slot is still empty.
	for _, doc := range usable {
		if result.CV == nil && h.cv.match(doc) {
			result.CV = doc
			continue
		}
		if result.Job == nil && doc != result.CV && h.job.match(doc) {
			result.Job = doc
		}
	}

	// Positional fallback: first supplied is the CV, second the posting.
	if result.CV == nil {
		for _, doc := range usable {
			if doc != result.Job {
				result.CV = doc
				break
			}
		}
	}
	if result.Job == nil {
		for _, doc := range usable {
			if doc != result.CV {
				result.Job = doc
				break
			}
		}
	}

	if result.CV == nil || result.Job == nil {
		return nil, ErrClassificationFailed
	}

	return result, nil
}

func (in indicators) match(doc *docstore.Document) bool {
	name := strings.ToLower(doc.FileName)
	for _, hint := range in.names {
		if strings.Contains(name, hint) {
			return true
		}
	}

	text := strings.ToLower(doc.Text)
	for _, hint := range in.texts {
		if strings.Contains(text, hint) {
			return true
		}
	}

	return false
}
