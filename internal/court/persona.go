package court

import "strings"

// Persona is the fixed evaluative stance of a judge. Synthesis weights
// opinions by persona, never by which producer emitted them.
type Persona string

const (
	PersonaAdversarial Persona = "adversarial"
	PersonaSympathetic Persona = "sympathetic"
	PersonaPragmatic   Persona = "pragmatic"
)

// AllPersonas returns the three personas in canonical order.
func AllPersonas() []Persona {
	return []Persona{PersonaAdversarial, PersonaSympathetic, PersonaPragmatic}
}

// Valid reports whether p is a known persona.
func (p Persona) Valid() bool {
	switch p {
	case PersonaAdversarial, PersonaSympathetic, PersonaPragmatic:
		return true
	}
	return false
}

// ParsePersona looks up a persona by name (case-insensitive).
func ParsePersona(s string) (Persona, bool) {
	p := Persona(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}
