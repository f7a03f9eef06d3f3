package normalize

import (
	"strings"

	"github.com/motiondex/motiondex/internal/core/domain"
)

// aliasTable maps each canonical field to the source-key spellings the
// provider has been observed to use, in priority order. The first spelling
// present in a parsed response wins; later ones are only consulted when the
// earlier ones are absent.
var aliasTable = map[string][]string{
	domain.FieldAnimationName: {
		"Name of AnimationFile",
		"Animation File Name",
		"animation_name",
		"AnimationName",
		"file_name",
	},
	domain.FieldMovementDescription: {
		"Overall Movement Description",
		"movement_description",
		"Movement Description",
		"description",
	},
	domain.FieldInitialPose: {
		"Initial Pose",
		"initial_pose",
	},
	domain.FieldFinalPose: {
		"Final Pose",
		"final_pose",
	},
	domain.FieldScene: {
		"Appropriate Scene",
		"appropriate_scene",
		"Scene",
		"scene",
	},
	domain.FieldLoopable: {
		"Loopable",
		"loopable",
		"is_loopable",
	},
	domain.FieldTempo: {
		"Tempo Speed",
		"tempo_speed",
		"Tempo",
		"tempo",
	},
	domain.FieldIntensity: {
		"Intensity Force",
		"intensity_force",
		"Intensity",
		"intensity",
	},
	domain.FieldPostureDetail: {
		"Posture Detail",
		"posture_detail",
		"Posture",
	},
	domain.FieldCharacterGender: {
		"character_gender",
		"Character Gender",
		"gender",
	},
	domain.FieldCharacterAgeGroup: {
		"character_age_group",
		"Character Age Group",
		"age_group",
		"age",
	},
	domain.FieldCharacterBodyType: {
		"character_body_type",
		"Character Body Type",
		"body_type",
	},
}

// requiredFields must come back from the provider per the response schema.
// Their absence downgrades nothing; it is logged and the attempt is still
// persisted with partial data.
var requiredFields = []string{
	domain.FieldAnimationName,
	domain.FieldMovementDescription,
	domain.FieldScene,
	domain.FieldPostureDetail,
	domain.FieldCharacterGender,
	domain.FieldCharacterAgeGroup,
	domain.FieldCharacterBodyType,
}

// resolveAliases folds a raw source-key map into canonical fields. Source keys
// that match no alias survive as custom parameters under a custom_ prefix.
func resolveAliases(raw map[string]string) domain.FieldMap {
	fields := make(domain.FieldMap, len(raw))
	claimed := make(map[string]bool, len(raw))

	folded := make(map[string]string, len(raw))
	for key := range raw {
		folded[foldKey(key)] = key
	}

	for _, canonical := range domain.CanonicalFields {
		for _, spelling := range aliasTable[canonical] {
			if value, ok := raw[spelling]; ok {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					fields[canonical] = trimmed
					claimed[spelling] = true
					break
				}
			}
			// Alias spellings also match case/punctuation drift:
			// "appropriate scene" and "Appropriate_Scene" fold together.
			if sourceKey, ok := folded[foldKey(spelling)]; ok {
				if value := strings.TrimSpace(raw[sourceKey]); value != "" {
					fields[canonical] = value
					claimed[sourceKey] = true
					break
				}
			}
		}
	}

	for key, value := range raw {
		if claimed[key] {
			continue
		}
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		fields["custom_"+foldKey(key)] = trimmed
	}

	return fields
}

// foldKey normalizes a source key for drift-tolerant comparison: lowercase,
// runs of non-alphanumerics collapsed to single underscores.
func foldKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(key)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}
