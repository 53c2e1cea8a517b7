package analysis

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Artifact is a downloadable payload detected in generated text.
type Artifact struct {
	Kind              string `json:"kind"`
	Content           string `json:"content"`
	SuggestedFilename string `json:"suggestedFilename"`
	FileExtension     string `json:"fileExtension"`
	MimeType          string `json:"mimeType"`
}

const artifactBaseName = "analysis_result"

type artifactRule struct {
	name  string
	match func(text string) (Artifact, bool)
}

type fenceKind struct {
	kind      string
	tags      []string
	extension string
	mimeType  string
}

// Checked in this order; the first tag with a closed block wins.
var fenceKinds = []fenceKind{
	{kind: "csv", tags: []string{"csv"}, extension: "csv", mimeType: "text/csv"},
	{kind: "json", tags: []string{"json"}, extension: "json", mimeType: "application/json"},
	{kind: "xml", tags: []string{"xml"}, extension: "xml", mimeType: "application/xml"},
	{kind: "txt", tags: []string{"txt", "text"}, extension: "txt", mimeType: "text/plain"},
	{kind: "sql", tags: []string{"sql"}, extension: "sql", mimeType: "text/plain"},
	{kind: "python", tags: []string{"python"}, extension: "py", mimeType: "text/plain"},
	{kind: "javascript", tags: []string{"javascript", "js"}, extension: "js", mimeType: "text/plain"},
}

// Every line holds at least one comma. Prose with a comma per line passes too.
var csvLike = regexp.MustCompile(`^[^\n]*,[^\n]*(?:\n[^\n]*,[^\n]*)*$`)

var artifactRules = buildRules()

func buildRules() []artifactRule {
	rules := []artifactRule{{name: "csv_like", match: matchCSVLike}}
	for _, fk := range fenceKinds {
		rules = append(rules, artifactRule{name: "fenced_" + fk.kind, match: fenceMatcher(fk)})
	}
	return append(rules, artifactRule{name: "bare_json", match: matchBareJSON})
}

// Classify returns the first artifact any rule detects in text. ok is false
// when the text carries none.
func Classify(text string) (Artifact, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Artifact{}, false
	}
	for _, rule := range artifactRules {
		if artifact, ok := rule.match(trimmed); ok {
			return artifact, true
		}
	}
	return Artifact{}, false
}

func newArtifact(kind, extension, mimeType, content string) Artifact {
	return Artifact{
		Kind:              kind,
		Content:           content,
		SuggestedFilename: artifactBaseName + "." + extension,
		FileExtension:     extension,
		MimeType:          mimeType,
	}
}

func matchCSVLike(text string) (Artifact, bool) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	if !strings.Contains(normalized, "\n") || !strings.Contains(normalized, ",") {
		return Artifact{}, false
	}
	if !csvLike.MatchString(normalized) {
		return Artifact{}, false
	}
	return newArtifact("csv", "csv", "text/csv", text), true
}

func fenceMatcher(fk fenceKind) func(string) (Artifact, bool) {
	quoted := make([]string, len(fk.tags))
	for i, tag := range fk.tags {
		quoted[i] = regexp.QuoteMeta(tag)
	}
	pattern := regexp.MustCompile("(?is)```(?:" + strings.Join(quoted, "|") + ")[ \\t]*\\r?\\n(.*?)```")
	return func(text string) (Artifact, bool) {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			return Artifact{}, false
		}
		return newArtifact(fk.kind, fk.extension, fk.mimeType, strings.TrimSpace(m[1])), true
	}
}

func matchBareJSON(text string) (Artifact, bool) {
	object := strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}")
	array := strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]")
	if !object && !array {
		return Artifact{}, false
	}
	if !gjson.Valid(text) {
		return Artifact{}, false
	}
	return newArtifact("json", "json", "application/json", text), true
}
