package gemini

const systemInstruction = `Analyze the actions of people in the video and return the results in JSON format.
Keep the response concise and avoid unnecessary details.
# Required Fields:
- Animation File Name
- Character Gender
- Character Age Group
- Character Body Type
- Overall Movement Description
- Initial Pose
- Final Pose
- Appropriate Scene
- Loopable
- Tempo Speed
- Intensity Force
- Posture Detail`

type generationConfig struct {
	Temperature      float64         `json:"temperature"`
	TopP             float64         `json:"topP"`
	TopK             int             `json:"topK"`
	MaxOutputTokens  int             `json:"maxOutputTokens"`
	ResponseMIMEType string          `json:"responseMimeType"`
	ResponseSchema   *responseSchema `json:"responseSchema,omitempty"`
}

type responseSchema struct {
	Type       string                     `json:"type"`
	Required   []string                   `json:"required,omitempty"`
	Properties map[string]*responseSchema `json:"properties,omitempty"`
}

// responseFieldNames maps the schema's property names (the spellings the
// provider is asked for) in declaration order. The normalizer tolerates any
// drift from this set; the schema is a request, not a guarantee.
var responseFieldNames = []string{
	"Name of AnimationFile",
	"character_gender",
	"character_age_group",
	"character_body_type",
	"Overall Movement Description",
	"Initial Pose",
	"Final Pose",
	"Appropriate Scene",
	"Loopable",
	"Tempo Speed",
	"Intensity Force",
	"Posture Detail",
}

var requiredResponseFields = []string{
	"Name of AnimationFile",
	"Overall Movement Description",
	"Appropriate Scene",
	"Posture Detail",
	"character_gender",
	"character_age_group",
	"character_body_type",
}

func defaultGenerationConfig() generationConfig {
	properties := make(map[string]*responseSchema, len(responseFieldNames))
	for _, name := range responseFieldNames {
		properties[name] = &responseSchema{Type: "STRING"}
	}

	return generationConfig{
		Temperature:      1,
		TopP:             0.95,
		TopK:             40,
		MaxOutputTokens:  8192,
		ResponseMIMEType: "application/json",
		ResponseSchema: &responseSchema{
			Type:       "OBJECT",
			Required:   requiredResponseFields,
			Properties: properties,
		},
	}
}
