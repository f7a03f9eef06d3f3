package domain

// Canonical field names the normalizer guarantees to attempt to populate,
// regardless of how the provider spells them in a given response.
const (
	FieldAnimationName       = "animation_name"
	FieldMovementDescription = "movement_description"
	FieldInitialPose         = "initial_pose"
	FieldFinalPose           = "final_pose"
	FieldScene               = "appropriate_scene"
	FieldLoopable            = "loopable"
	FieldTempo               = "tempo_speed"
	FieldIntensity           = "intensity_force"
	FieldPostureDetail       = "posture_detail"
	FieldCharacterGender     = "character_gender"
	FieldCharacterAgeGroup   = "character_age_group"
	FieldCharacterBodyType   = "character_body_type"

	// FieldRawText carries the whole response when no parse level succeeded.
	FieldRawText = "raw_text"
)

// CanonicalFields lists every canonical key in stable column order.
var CanonicalFields = []string{
	FieldAnimationName,
	FieldMovementDescription,
	FieldInitialPose,
	FieldFinalPose,
	FieldScene,
	FieldLoopable,
	FieldTempo,
	FieldIntensity,
	FieldPostureDetail,
	FieldCharacterGender,
	FieldCharacterAgeGroup,
	FieldCharacterBodyType,
}

// FieldMap is a normalized response: canonical keys plus any custom
// parameters the provider volunteered. Absent canonical fields are absent
// keys, never empty-string defaults.
type FieldMap map[string]string

func (m FieldMap) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m FieldMap) Clone() FieldMap {
	if m == nil {
		return nil
	}
	out := make(FieldMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
