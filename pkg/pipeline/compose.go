package pipeline

import "strings"

// DetailedForm is the structured description a prompt is composed from.
// Choice fields (Action, Style, Lighting, Composition, MatureStyle) accept
// "none" for no choice; the matching free-text field wins when set.
type DetailedForm struct {
	Subject         string `json:"subject"`
	Action          string `json:"action,omitempty"`
	ActionText      string `json:"action_text,omitempty"`
	Setting         string `json:"setting,omitempty"`
	Style           string `json:"style,omitempty"`
	StyleText       string `json:"style_text,omitempty"`
	Lighting        string `json:"lighting,omitempty"`
	LightingText    string `json:"lighting_text,omitempty"`
	Composition     string `json:"composition,omitempty"`
	CompositionText string `json:"composition_text,omitempty"`
	Details         string `json:"details,omitempty"`
	NegativePrompt  string `json:"negative_prompt,omitempty"`
	Mature          bool   `json:"mature,omitempty"`
	MatureStyle     string `json:"mature_style,omitempty"`
}

func chosen(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "none") {
		return ""
	}
	return v
}

func firstOf(text, choice string) string {
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	return chosen(choice)
}

// ComposePrompt joins the filled parts of f with ", " and appends the
// negative prompt as " --no ...".
func ComposePrompt(f DetailedForm) string {
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}

	add(strings.TrimSpace(f.Subject))
	add(firstOf(f.ActionText, f.Action))
	if s := strings.TrimSpace(f.Setting); s != "" {
		add("in " + s)
	}
	if t := strings.TrimSpace(f.StyleText); t != "" {
		add(t)
	} else if s := chosen(f.Style); s != "" {
		add(s + " style")
	}
	add(firstOf(f.LightingText, f.Lighting))
	add(firstOf(f.CompositionText, f.Composition))
	add(strings.TrimSpace(f.Details))
	if f.Mature {
		m := "NSFW, 18+ content"
		if s := chosen(f.MatureStyle); s != "" {
			m += ", " + s
		}
		add(m)
	}

	prompt := strings.Join(parts, ", ")
	if neg := strings.TrimSpace(f.NegativePrompt); neg != "" {
		prompt += " --no " + neg
	}
	return prompt
}
