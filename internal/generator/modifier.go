package generator

import "github.com/lumenmail/scribe/internal/tone"

// ToneModifier prepends the fixed instruction sentence for a tone ahead of
// the existing prompt text.
type ToneModifier struct {
	Tone tone.Tone
}

func NewToneModifier(t tone.Tone) ToneModifier {
	return ToneModifier{Tone: t}
}

func (m ToneModifier) ModifyPrompt(prompt string, _ Context) string {
	return tone.Instruction(m.Tone) + "\n\n" + prompt
}
