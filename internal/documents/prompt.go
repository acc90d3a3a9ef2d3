package documents

import (
	"fmt"
	"strings"
)

// AppType is the kind of product the idea describes.
type AppType string

const (
	AppTypeWeb    AppType = "web"
	AppTypeMobile AppType = "mobile"
	AppTypeBoth   AppType = "both"
)

// DisplayName maps the app type to the phrase used in prompts. Unknown values
// fall back to the combined web/mobile phrase.
func (a AppType) DisplayName() string {
	switch AppType(strings.ToLower(strings.TrimSpace(string(a)))) {
	case AppTypeWeb:
		return "web app"
	case AppTypeMobile:
		return "mobile app"
	}
	return "web/mobile app"
}

// Language selects the output language of generated documents.
type Language string

const (
	LanguageKorean  Language = "ko"
	LanguageEnglish Language = "en"
)

// DefaultLanguage is used when a request does not name one.
const DefaultLanguage = LanguageKorean

func (l Language) instruction() string {
	switch Language(strings.ToLower(strings.TrimSpace(string(l)))) {
	case LanguageEnglish:
		return "Write the document in English."
	}
	return "Write the document in Korean."
}

// Context is what the shared user prompt is built from.
type Context struct {
	Idea     string
	AppType  AppType
	Template string
	Language Language
}

// BaseContext builds the user prompt shared by all ten documents.
func BaseContext(c Context) string {
	var b strings.Builder
	b.WriteString("Project idea: ")
	b.WriteString(strings.TrimSpace(c.Idea))
	b.WriteString("\nApp type: ")
	b.WriteString(c.AppType.DisplayName())
	b.WriteString("\n")
	if t := strings.TrimSpace(c.Template); t != "" {
		b.WriteString("Template: ")
		b.WriteString(t)
		b.WriteString("\n")
	}
	b.WriteString("\nWrite the following document for the project above.\n")
	b.WriteString(c.Language.instruction())
	b.WriteString("\nRespond in markdown only, without wrapping it in a code block.\n")
	return b.String()
}

// FallbackContent is the placeholder the orchestrator stores for a failed
// document. It embeds the failure reason.
func FallbackContent(k Key, reason string) string {
	return fmt.Sprintf("# %s\n\nDocument generation failed. Please try again.\n\nError: %s", k, reason)
}

// PartialPlaceholder fills a failed slot when the user chooses to continue
// without retrying.
func PartialPlaceholder(k Key) string {
	return fmt.Sprintf("# %s\n\nThis document was not generated. Regenerate it from the project page.", Title(k))
}
