package llm

import "strings"

// SystemPrompt frames every analysis request.
const SystemPrompt = "You are an expert agricultural data analyst. You help farmers and certification " +
	"bodies understand farm records, yields, inputs and compliance requirements. Answer precisely, " +
	"cite the file a finding comes from, and when asked for tabular or structured output return it " +
	"as CSV or JSON in a fenced code block."

const analyzeInstruction = "Please analyze the data above according to the user's request."

// FileSection is the extracted text of one selected file.
type FileSection struct {
	Name string
	Text string
}

// BuildPrompt concatenates file sections in caller order, then the user prompt
// and the closing instruction.
func BuildPrompt(sections []FileSection, prompt string) string {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("=== File: ")
		b.WriteString(s.Name)
		b.WriteString(" ===\n")
		b.WriteString(s.Text)
	}
	b.WriteString("\n\nUser request: ")
	b.WriteString(strings.TrimSpace(prompt))
	b.WriteString("\n\n")
	b.WriteString(analyzeInstruction)
	return b.String()
}
