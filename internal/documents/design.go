package documents

import (
	"fmt"
	"strings"
	"time"
)

// DesignSystem is an extracted visual design applied to finished documents.
type DesignSystem struct {
	SourceURL   string    `json:"sourceUrl"`
	ExtractedAt time.Time `json:"extractedAt"`
	Colors      struct {
		Primary    string `json:"primary"`
		Secondary  string `json:"secondary"`
		Accent     string `json:"accent"`
		Background string `json:"background"`
		Surface    string `json:"surface"`
		Border     string `json:"border"`
		Success    string `json:"success"`
		Warning    string `json:"warning"`
		Error      string `json:"error"`
		Text       struct {
			Primary   string `json:"primary"`
			Secondary string `json:"secondary"`
			Muted     string `json:"muted"`
		} `json:"text"`
	} `json:"colors"`
	Typography struct {
		Heading string `json:"heading"`
		Body    string `json:"body"`
		Mono    string `json:"mono"`
	} `json:"typography"`
	Radius struct {
		SM string `json:"sm"`
		MD string `json:"md"`
		LG string `json:"lg"`
	} `json:"radius"`
}

const (
	designSystemHeading    = "## Design System"
	designReferenceHeading = "## Design Reference"
)

// HasDesignSection reports whether content already carries a design section.
func HasDesignSection(content string) bool {
	return strings.Contains(content, designSystemHeading) || strings.Contains(content, designReferenceHeading)
}

// ApplyDesign appends design sections to techStack, prd and promptGuide and
// returns only the documents it changed. Documents that already carry a
// design section are left alone; existing content is never rewritten.
func ApplyDesign(docs map[Key]string, d DesignSystem) map[Key]string {
	out := map[Key]string{}
	add := func(k Key, section string) {
		content, ok := docs[k]
		if !ok || HasDesignSection(content) {
			return
		}
		out[k] = content + section
	}
	add(TechStack, techStackSection(d))
	add(PRD, prdSection(d))
	add(PromptGuide, promptGuideSection(d))
	return out
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func designSection(d DesignSystem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n\n", designSystemHeading)
	fmt.Fprintf(&b, "> Source: %s\n> Extracted: %s\n\n", d.SourceURL, d.ExtractedAt.Format("2006-01-02"))
	b.WriteString("### Color Palette\n\n| Role | Color |\n|------|------|\n")
	rows := [][2]string{
		{"Primary", d.Colors.Primary},
		{"Secondary", d.Colors.Secondary},
		{"Accent", d.Colors.Accent},
		{"Background", d.Colors.Background},
		{"Surface", d.Colors.Surface},
		{"Text (Primary)", d.Colors.Text.Primary},
		{"Text (Secondary)", d.Colors.Text.Secondary},
		{"Text (Muted)", d.Colors.Text.Muted},
		{"Border", d.Colors.Border},
		{"Success", d.Colors.Success},
		{"Warning", d.Colors.Warning},
		{"Error", d.Colors.Error},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | `%s` |\n", r[0], dash(r[1]))
	}
	fmt.Fprintf(&b, "\n### Typography\n\n- **Heading Font:** %s\n- **Body Font:** %s\n- **Mono Font:** %s\n",
		dash(d.Typography.Heading), dash(d.Typography.Body), dash(d.Typography.Mono))
	fmt.Fprintf(&b, "\n### Effects\n\n| Type | Value |\n|------|-----|\n| Border Radius | sm: %s, md: %s, lg: %s |\n",
		dash(d.Radius.SM), dash(d.Radius.MD), dash(d.Radius.LG))
	return b.String()
}

func techStackSection(d DesignSystem) string {
	var b strings.Builder
	b.WriteString("\n\n---\n")
	b.WriteString(designSection(d))
	b.WriteString("\n### CSS Variables\n\n```css\n:root {\n")
	vars := [][2]string{
		{"--color-primary", d.Colors.Primary},
		{"--color-secondary", d.Colors.Secondary},
		{"--color-accent", d.Colors.Accent},
		{"--color-background", d.Colors.Background},
		{"--color-surface", d.Colors.Surface},
		{"--color-text-primary", d.Colors.Text.Primary},
		{"--color-text-secondary", d.Colors.Text.Secondary},
		{"--color-border", d.Colors.Border},
		{"--font-heading", d.Typography.Heading},
		{"--font-body", d.Typography.Body},
		{"--font-mono", d.Typography.Mono},
	}
	for _, v := range vars {
		if strings.TrimSpace(v[1]) == "" {
			continue
		}
		fmt.Fprintf(&b, "  %s: %s;\n", v[0], v[1])
	}
	b.WriteString("}\n```\n")
	return b.String()
}

func prdSection(d DesignSystem) string {
	return fmt.Sprintf("\n\n---\n\n%s\n\nThis project follows the extracted design system.\n\n"+
		"- **Main colors:** Primary(%s), Secondary(%s)\n- **Font:** %s\n- **Design source:** %s\n\n"+
		"See %s for the full design spec.\n",
		designReferenceHeading, dash(d.Colors.Primary), dash(d.Colors.Secondary), dash(d.Typography.Body), d.SourceURL, FileName(TechStack))
}

func promptGuideSection(d DesignSystem) string {
	return fmt.Sprintf("\n\n---\n\n%s\n\nUse this design system when building UI with AI tools:\n\n"+
		"### Colors\n- **Primary buttons/emphasis:** %s\n- **Secondary elements:** %s\n- **Background:** %s\n"+
		"- **Cards/Surface:** %s\n- **Text:** %s\n- **Secondary text:** %s\n\n"+
		"### Fonts\n```\nHeading: %s\nBody: %s\nCode: %s\n```\n\n"+
		"### Example prompt\n\n> \"Build a button using the primary color (%s) with the %s font and rounded-md corners.\"\n",
		designSystemHeading+" Usage Guide",
		dash(d.Colors.Primary), dash(d.Colors.Secondary), dash(d.Colors.Background),
		dash(d.Colors.Surface), dash(d.Colors.Text.Primary), dash(d.Colors.Text.Secondary),
		dash(d.Typography.Heading), dash(d.Typography.Body), dash(d.Typography.Mono),
		dash(d.Colors.Primary), dash(d.Typography.Body))
}
