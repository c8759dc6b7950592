package generation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sibylhq/sibyl/pkg/models"
)

// cannedTemplate pairs trigger keywords with a fixed response.
type cannedTemplate struct {
	keywords []string
	response string
}

// CannedGenerator serves fixed keyword-matched responses. It is the
// offline provider and the degradation target when a live model fails;
// it never returns an error.
type CannedGenerator struct {
	templates []cannedTemplate
}

// NewCannedGenerator creates the canned provider with the built-in
// municipal-operations templates.
func NewCannedGenerator() *CannedGenerator {
	return &CannedGenerator{templates: []cannedTemplate{
		{
			keywords: []string{"pothole", "road", "repair"},
			response: `Based on the standard operating procedures, pothole repairs should be completed within 7-10 business days of reporting. The maintenance team must:

1. Inspect and assess the severity within 24 hours
2. Prioritize based on traffic volume and safety risk
3. Deploy repair crew within the specified timeframe
4. Update the complaint status in the system

For urgent cases affecting major roads, the timeline is reduced to 48 hours.`,
		},
		{
			keywords: []string{"water", "supply", "quality"},
			response: `According to water supply management guidelines, water quality must meet WHO standards. Key requirements include:

1. Daily testing of pH, turbidity, and chlorine levels
2. Monthly testing for bacteriological parameters
3. Quarterly comprehensive analysis including heavy metals
4. Immediate notification to health department if standards are breached

Citizens should report water quality issues through the complaint portal.`,
		},
		{
			keywords: []string{"complaint", "ward", "status"},
			response: `The complaint management system tracks all citizen grievances by ward. Statistics show:

- Average resolution time: 5-7 days
- Most common complaint types: Road maintenance, water supply, street lighting
- Wards with highest complaints typically receive additional resource allocation

Officers can filter complaints by ward, type, date range, and status in the dashboard.`,
		},
		{
			keywords: []string{"compliance", "sop", "regulation"},
			response: `All municipal operations must comply with established SOPs and regulations. Key compliance requirements:

1. Document all actions and decisions
2. Follow prescribed timelines for citizen services
3. Maintain transparency in procurement and contracting
4. Regular audits and reporting to oversight committees

Non-compliance may result in disciplinary action and legal consequences.`,
		},
	}}
}

func (g *CannedGenerator) Name() string { return "canned" }

// Generate matches the prompt against the template keywords and returns
// the first hit, or a generic guidance response when nothing matches.
func (g *CannedGenerator) Generate(_ context.Context, prompt string, _ models.GenerationSettings) (string, error) {
	lower := strings.ToLower(prompt)

	for _, tmpl := range g.templates {
		for _, kw := range tmpl.keywords {
			if strings.Contains(lower, kw) {
				return tmpl.response, nil
			}
		}
	}

	return fmt.Sprintf(`I understand you're asking about: %q

Based on the available information in the knowledge base, I can provide general guidance. However, for specific details and authoritative answers, I recommend:

1. Consulting the relevant policy documents
2. Checking with the department specialists
3. Reviewing recent circulars and updates

Please upload relevant documents to the system for more accurate, context-specific answers.`, firstLine(prompt)), nil
}

// firstLine trims the prompt to its final user line so template
// wrapping and retrieved context do not leak into the generic answer.
func firstLine(prompt string) string {
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if len(last) > 120 {
		cut := 120
		for cut > 0 && !utf8.RuneStart(last[cut]) {
			cut--
		}
		last = last[:cut]
	}
	return last
}
