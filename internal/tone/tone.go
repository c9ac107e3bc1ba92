// Package tone infers appropriate email tones from draft content and
// recipients. Pure string analysis; no network, no state.
package tone

import (
	"fmt"
	"regexp"
	"strings"
)

type Tone string

const (
	Professional Tone = "professional"
	Friendly     Tone = "friendly"
	Formal       Tone = "formal"
	Casual       Tone = "casual"
	Urgent       Tone = "urgent"
	Apologetic   Tone = "apologetic"

	// Concise appears only in the fallback inference.
	Concise Tone = "concise"
)

// Inference is an ordered list of at most 3 distinct tones. Order is
// significant: it drives quick-reply ordering.
type Inference struct {
	Tones     []Tone
	Rationale string
}

var (
	urgentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)urgent`),
		regexp.MustCompile(`(?i)asap`),
		regexp.MustCompile(`(?i)immediately`),
		regexp.MustCompile(`(?i)right away`),
		regexp.MustCompile(`(?i)deadline`),
	}
	formalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)dear sir`),
		regexp.MustCompile(`(?i)dear madam`),
		regexp.MustCompile(`(?i)regards`),
		regexp.MustCompile(`(?i)sincerely`),
		regexp.MustCompile(`(?i)yours truly`),
	}
	casualPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)hey`),
		regexp.MustCompile(`(?i)hi there`),
		regexp.MustCompile(`(?i)thanks`),
		regexp.MustCompile(`(?i)cheers`),
		regexp.MustCompile(`(?i)best`),
	}
	apologeticPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)sorry`),
		regexp.MustCompile(`(?i)apologize`),
		regexp.MustCompile(`(?i)regret`),
		regexp.MustCompile(`(?i)unfortunately`),
		regexp.MustCompile(`(?i)mistake`),
	}

	formalDomains  = []string{"gov", "edu", "org"}
	urgentKeywords = []string{"urgent", "emergency", "support", "help"}
)

// Infer analyzes draft content and recipients and returns up to 3 tones in
// detection order: urgent, then formal (which beats casual), then apologetic,
// then professional and friendly as always-on baselines.
func Infer(content string, recipients []string) Inference {
	contentUrgent := matchAny(urgentPatterns, content)
	contentFormal := matchAny(formalPatterns, content)
	contentCasual := matchAny(casualPatterns, content)
	contentApologetic := matchAny(apologeticPatterns, content)

	recipientUrgent, recipientFormal, recipientCasual := analyzeRecipients(recipients)

	var tones []Tone
	if contentUrgent || recipientUrgent {
		tones = append(tones, Urgent)
	}
	if contentFormal || recipientFormal {
		tones = append(tones, Formal)
	} else if contentCasual || recipientCasual {
		tones = append(tones, Casual)
	}
	if contentApologetic {
		tones = append(tones, Apologetic)
	}
	if !contains(tones, Professional) {
		tones = append(tones, Professional)
	}
	if !contains(tones, Friendly) {
		tones = append(tones, Friendly)
	}

	if len(tones) > 3 {
		tones = tones[:3]
	}

	return Inference{Tones: tones, Rationale: rationale(tones)}
}

// Fallback is the fixed inference used when analysis is unavailable.
func Fallback() Inference {
	return Inference{
		Tones:     []Tone{Professional, Friendly, Concise},
		Rationale: "Using default professional, friendly, and concise tones.",
	}
}

func analyzeRecipients(recipients []string) (urgent, formal, casual bool) {
	for _, addr := range recipients {
		lower := strings.ToLower(addr)
		for _, kw := range urgentKeywords {
			if strings.Contains(lower, kw) {
				urgent = true
			}
		}
		for _, domain := range formalDomains {
			if strings.Contains(lower, domain) {
				formal = true
			}
		}
	}
	// A single non-address recipient reads as a casual first name.
	if len(recipients) == 1 && recipients[0] != "" && !strings.Contains(recipients[0], "@") {
		casual = true
	}
	return urgent, formal, casual
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func contains(tones []Tone, t Tone) bool {
	for _, existing := range tones {
		if existing == t {
			return true
		}
	}
	return false
}

var descriptions = map[Tone]string{
	Professional: "Maintaining a professional and business-appropriate tone",
	Friendly:     "Keeping a warm and friendly tone while maintaining professionalism",
	Formal:       "Using a formal tone suitable for official communications",
	Casual:       "Adopting a casual and conversational tone",
	Urgent:       "Conveying a sense of urgency and importance",
	Apologetic:   "Expressing a sincere and apologetic tone",
	Concise:      "Keeping the message short and to the point",
}

func rationale(tones []Tone) string {
	parts := make([]string, len(tones))
	for i, t := range tones {
		parts[i] = descriptions[t]
	}
	return fmt.Sprintf("Based on the email context, I've identified these appropriate tones: %s.", strings.Join(parts, ", "))
}

var instructions = map[Tone]string{
	Professional: "Write in a professional and business-appropriate tone.",
	Friendly:     "Write in a warm and friendly tone while maintaining professionalism.",
	Formal:       "Write in a formal tone suitable for official communications.",
	Casual:       "Write in a casual and conversational tone.",
	Urgent:       "Write with a sense of urgency and importance.",
	Apologetic:   "Write in a sincere and apologetic tone.",
	Concise:      "Write concisely, keeping the message short and to the point.",
}

// Instruction returns the fixed drafting instruction for a tone.
func Instruction(t Tone) string {
	if instr, ok := instructions[t]; ok {
		return instr
	}
	return instructions[Professional]
}

// Title renders a tone for display labels, e.g. "Urgent".
func (t Tone) Title() string {
	s := string(t)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
