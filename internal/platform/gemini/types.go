// Package gemini implements the generation interfaces using Google's
// generative APIs.
package gemini

// narrativeSchema mirrors the JSON document the text model is asked to
// produce for a story.
type narrativeSchema struct {
	// Title is the story title shown to the reader.
	Title string `json:"title"`

	// CharacterDesign describes the protagonist's exact appearance. It is
	// reused in every scene's image prompt so the character stays visually
	// identical across illustrations.
	CharacterDesign string `json:"character_design"`

	// BackgroundDesign describes the setting and palette shared by all
	// scenes.
	BackgroundDesign string `json:"background_design"`

	// Scenes is the ordered list of story beats.
	Scenes []sceneSchema `json:"scenes"`
}

// sceneSchema is a single scene in the model response.
type sceneSchema struct {
	// SceneNumber is the 1-based position of the scene in the story.
	SceneNumber int `json:"scene_number"`

	// Text is the narration for the scene.
	Text string `json:"text"`

	// ImagePrompt is the scene-specific illustration prompt. It may carry
	// {{CHAR}} and {{BG}} tokens that are expanded with the design
	// descriptors at image time.
	ImagePrompt string `json:"image_prompt"`
}
