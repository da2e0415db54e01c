package domain

import "strings"

// defaultSoftFailurePhrases are substrings of assistant output that indicate
// the model did not actually process an attached image. Substring matching
// against natural-language output is fragile; the list is injectable so it
// can evolve without touching orchestration logic.
var defaultSoftFailurePhrases = []string{
	"can't see the image",
	"cannot see the image",
	"can't see any image",
	"cannot see any image",
	"can't view the image",
	"cannot view the image",
	"unable to see the image",
	"unable to view the image",
	"no image was provided",
	"don't see an image",
	"i'm unable to process images",
	"cannot process images",
}

// SubstringDetector flags semantically useless responses by matching a fixed
// phrase list against the assistant text. Only applied when the request
// actually carried an image.
type SubstringDetector struct {
	phrases []string
}

// NewSubstringDetector creates a detector with the given phrases, or the
// built-in list when none are supplied.
func NewSubstringDetector(phrases ...string) *SubstringDetector {
	if len(phrases) == 0 {
		phrases = defaultSoftFailurePhrases
	}
	return &SubstringDetector{phrases: phrases}
}

// Detect returns the matched phrase when the content indicates the model
// could not see an image it was sent.
func (d *SubstringDetector) Detect(content string, hasImage bool) (string, bool) {
	if !hasImage {
		return "", false
	}

	lowered := strings.ToLower(content)
	for _, phrase := range d.phrases {
		if strings.Contains(lowered, phrase) {
			return phrase, true
		}
	}
	return "", false
}
