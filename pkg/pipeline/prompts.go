package pipeline

import (
	"fmt"
	"strings"
)

// Language is one of the supported prompt languages.
type Language string

const (
	Vietnamese         Language = "Vietnamese"
	English            Language = "English"
	TraditionalChinese Language = "Traditional Chinese"
)

// Languages is the closed set recognized by detection, in display order.
var Languages = []Language{Vietnamese, English, TraditionalChinese}

// TranslationFailed replaces the output of a failed best-effort translation.
const TranslationFailed = "translation failed"

// ParseLanguage matches s against the closed language set. Surrounding
// whitespace, quotes and a trailing period are ignored, as is case.
func ParseLanguage(s string) (Language, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	s = strings.TrimSuffix(s, ".")
	for _, l := range Languages {
		if strings.EqualFold(s, string(l)) {
			return l, true
		}
	}
	return "", false
}

func (l Language) others() []Language {
	out := make([]Language, 0, len(Languages)-1)
	for _, o := range Languages {
		if o != l {
			out = append(out, o)
		}
	}
	return out
}

const keywordRule = "It is critical to identify and preserve all technical image generation keywords, such as artistic styles, technical terms, and artist names, in their original English. Only translate the descriptive, narrative parts of the prompt. Return only the final translated hybrid prompt."

func detectPrompt(text string) string {
	return fmt.Sprintf("Detect the language of the following text. Respond with only one of these options: %q, %q, or %q.\n\nText: %q",
		Vietnamese, English, TraditionalChinese, text)
}

func translatePrompt(text string, from, to Language) string {
	return fmt.Sprintf("Translate the following text from %s to %s. Provide a literal, meaning-for-meaning translation. Do not add any extra text or explanations.\n\nText: %q",
		from, to, text)
}

func hybridPrompt(text string, from, to Language) string {
	return fmt.Sprintf("You are an expert prompt translator. Translate the following text from %s to %s. %s\n\nText: %q",
		from, to, keywordRule, text)
}

func optimizePrompt(text string, from Language) string {
	return fmt.Sprintf("You are an expert prompt translator. Translate the following text from %s to English. "+
		"It is critical to identify and preserve all technical image generation keywords, such as artistic styles (e.g., 'cinematic', 'photorealistic', 'anime'), "+
		"technical terms (e.g., '8k', 'high detail', 'bokeh', 'rim light'), and artist names, in their original English. "+
		"Only translate the descriptive, narrative parts of the prompt. Return only the final translated hybrid prompt.\n\nText: %q",
		from, text)
}

func ideaPrompt(idea string) string {
	return fmt.Sprintf("Based on the following idea, generate a detailed and artistic image generation prompt in English. "+
		"The prompt should be a single, coherent paragraph. Embellish the idea with creative details related to style, lighting, composition, and mood. Idea: %q",
		idea)
}

const randomPrompt = "Generate a single, creative, and detailed random image generation prompt in English. " +
	"The prompt should be a single, coherent paragraph describing a unique scene with a clear subject, setting, style, and mood."

func checkPrompt(prompt string) string {
	return fmt.Sprintf("You are an expert image prompt engineer. Analyze the following user-submitted prompt. Provide a constructive critique using Markdown.\n"+
		"1. **Strengths:** What is good about the prompt.\n"+
		"2. **Improvements:** What is weak, unclear, or could be more descriptive.\n"+
		"3. %s Provide a rewritten, optimized version of the prompt in English, enclosed in a markdown code block.\n\n"+
		"User Prompt:\n%q", OptimizedHeading, prompt)
}

const describeImagePrompt = "Analyze this image and create a detailed, artistic image generation prompt in English that could be used to recreate a similar image. " +
	"Describe the subject, setting, style, lighting, composition, and mood. Format the output as a single block of text."
