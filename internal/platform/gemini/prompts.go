package gemini

import (
	"fmt"
	"strings"

	"github.com/lumenhq/fable-api/internal/generation"
)

// Descriptor tokens the text model embeds in scene image prompts. They are
// expanded with the character and background designs before illustration.
const (
	charToken = "{{CHAR}}"
	bgToken   = "{{BG}}"
)

// Style applied when the request carries none.
const defaultImageStyle = "Pixar 3D style, cute and vibrant"

// defaultAspectRatio is the shape of scene illustrations.
const defaultAspectRatio = "16:9"

const fairytaleKeywords = "magical fairytale storybook illustration, " +
	"enchanted children's book art, " +
	"whimsical dreamlike atmosphere, " +
	"vibrant cheerful colors, " +
	"soft magical lighting, " +
	"safe and friendly for children"

const qualityKeywords = "high quality 3D render, " +
	"Pixar animation style, " +
	"volumetric lighting, " +
	"cinematic composition, " +
	"highly detailed, " +
	"professional children's illustration"

// genericScenePrompt is the last rung of the fallback ladder. It drops all
// scene-specific content so even a heavily filtered prompt can still yield
// a friendly image.
const genericScenePrompt = "A cute magical fairytale scene with friendly characters. " +
	"Pixar 3D animation style, bright vibrant colors, " +
	"whimsical enchanted atmosphere, safe and happy for children."

// systemPromptFormat instructs the model to answer with the exact JSON
// document narrativeSchema parses. The character design rules matter: every
// scene's illustration is generated independently, so the design string is
// the only thing keeping the protagonist visually identical across pages.
const systemPromptFormat = `You are a fairy tale writer for children aged 2 to 12. Create a unique magical story.

Respond with JSON only, in exactly this shape:
{
  "title": "A magical, whimsical story title",
  "character_design": "[age/kind], [size], [exact colors], [hair or surface], [outfit or features], [eyes: color and shape]",
  "background_design": "[place type], [magic element], [lighting], [color palette]",
  "scenes": [{"scene_number": 1, "text": "...", "image_prompt": "{{CHAR}} [action], {{BG}} [location]"}]
}

CHARACTER DESIGN (critical, must be identical in every scene):
- Give every feature an exact color, shape, and size (emerald scales, round silver head, tiny body).
- Example: "small robot, round silver head, cyan glowing eyes, thin square antenna, orange chest panel".
- In each scene's image_prompt, write {{CHAR}} where the character appears and {{BG}} where the setting appears. Never re-describe them.

TITLE:
- Magical and varied. Avoid formulaic patterns and overused words like Whispering, Emerald, Golden, Crystal Staircase.

CONTENT:
- Vary scene openings. Never start multiple scenes with the same phrase.
- Write numbers as words. The story ends happily and is safe for young children.

RULES:
- Exactly %d scenes, %d-%d words each.

JSON only.`

// sceneWordRange returns the per-scene word range for a story of the given
// length. Longer stories carry more words per scene so the pacing feels
// consistent when read aloud.
func sceneWordRange(sceneCount int) (int, int) {
	switch {
	case sceneCount >= 14:
		return 56, 60
	case sceneCount >= 10:
		return 38, 50
	default:
		return 25, 50
	}
}

// buildSystemPrompt renders the system instruction for a story with the
// given scene count.
func buildSystemPrompt(sceneCount int) string {
	minWords, maxWords := sceneWordRange(sceneCount)
	return fmt.Sprintf(systemPromptFormat, sceneCount, minWords, maxWords)
}

// buildUserPrompt renders the concise user message carrying the story idea
// and the structural requirements.
func buildUserPrompt(req generation.NarrativeRequest) string {
	var b strings.Builder

	tone := strings.TrimSpace(req.Tone)
	if tone != "" {
		b.WriteString(capitalize(tone))
		b.WriteString(" story: ")
	} else {
		b.WriteString("Story: ")
	}
	b.WriteString(strings.TrimSpace(req.Prompt))
	b.WriteString("\n")

	if theme := strings.TrimSpace(req.Theme); theme != "" {
		fmt.Fprintf(&b, "Theme: %s.\n", strings.ReplaceAll(theme, "_", " "))
	}
	if name := strings.TrimSpace(req.ChildName); name != "" {
		fmt.Fprintf(&b, "The hero is named %s.\n", name)
	}

	minWords, maxWords := sceneWordRange(req.SceneCount)
	fmt.Fprintf(&b, "%d scenes, %d-%d words per scene, JSON only",
		req.SceneCount, minWords, maxWords)

	return b.String()
}

// buildImagePrompts returns the ordered ladder of prompts tried for one
// scene illustration: the fully enhanced prompt first, then a simplified
// variant, then a generic scene with no story-specific content.
func buildImagePrompts(spec generation.ImageSpec) []string {
	expanded := expandDescriptors(spec.Prompt, spec.CharacterDescriptor, spec.BackgroundDescriptor)

	style := strings.TrimSpace(spec.Style)
	if style == "" {
		style = defaultImageStyle
	}

	detailed := expanded
	if pinned := consistencyClause(spec.CharacterDescriptor); pinned != "" {
		detailed = expanded + ". " + pinned
	}

	return []string{
		fmt.Sprintf("%s. %s, %s, %s", detailed, fairytaleKeywords, qualityKeywords, style),
		fmt.Sprintf("%s. Magical fairytale scene, Pixar 3D style, bright cheerful colors, safe for children.", expanded),
		genericScenePrompt,
	}
}

// consistencyClause pins the character's design tokens. Every scene is
// illustrated by an independent model call, so the colors, shapes and
// sizes in the descriptor must be restated with an explicit instruction
// or the character drifts from page to page.
func consistencyClause(character string) string {
	character = strings.TrimSpace(character)
	if character == "" {
		return ""
	}
	return fmt.Sprintf(
		"The character is exactly: %s. Keep these colors, shapes and sizes identical, do not vary them across scenes",
		character)
}

// expandDescriptors substitutes the design descriptors into a scene image
// prompt. Prompts without tokens get the descriptors appended so character
// consistency survives a model that forgot to emit them.
func expandDescriptors(prompt, character, background string) string {
	expanded := strings.TrimSpace(prompt)

	if strings.Contains(expanded, charToken) {
		expanded = strings.ReplaceAll(expanded, charToken, character)
	} else if character != "" {
		expanded = fmt.Sprintf("%s, featuring %s", expanded, character)
	}

	if strings.Contains(expanded, bgToken) {
		expanded = strings.ReplaceAll(expanded, bgToken, background)
	} else if background != "" {
		expanded = fmt.Sprintf("%s, set in %s", expanded, background)
	}

	return expanded
}

// capitalize upper-cases the first byte of an ASCII word.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
