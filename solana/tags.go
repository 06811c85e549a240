package aireg_protocol

import (
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
)

// AgentSkill is one capability an agent advertises. Skills are matched by
// Search through their id, name and tags.
type AgentSkill struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

func (s *AgentSkill) validate(field string) error {
	if err := validateRequired(field+".id", s.ID, MaxSkillIDLen); err != nil {
		return err
	}
	if err := validateRequired(field+".name", s.Name, MaxSkillNameLen); err != nil {
		return err
	}
	return validateTags(field+".tags", s.Tags, MaxSkillTags, MaxSkillTagLen)
}

func validateTags(field string, tags []string, maxCount, maxLen int) error {
	if len(tags) > maxCount {
		return &ValidationError{Field: field, Constraint: fmt.Sprintf("at most %d tags allowed, got %d", maxCount, len(tags))}
	}
	for i, tag := range tags {
		if err := validateRequired(fmt.Sprintf("%s[%d]", field, i), tag, maxLen); err != nil {
			return err
		}
	}
	return nil
}

func validateSkills(skills []AgentSkill) error {
	if len(skills) > MaxSkills {
		return &ValidationError{Field: "skills", Constraint: fmt.Sprintf("at most %d skills allowed, got %d", MaxSkills, len(skills))}
	}
	for i := range skills {
		if err := skills[i].validate(fmt.Sprintf("skills[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// Vec<String> and Vec<AgentSkill> are a u32 LE count followed by the items.
// Update payloads wrap them in an option: nil is absent, an empty slice clears.

func writeStrings(enc *bin.Encoder, ss []string) error {
	if err := enc.WriteUint32(uint32(len(ss)), bin.LE); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(enc, s); err != nil {
			return err
		}
	}
	return nil
}

func writeOptionalStrings(enc *bin.Encoder, ss []string) error {
	if ss == nil {
		return enc.WriteUint8(0)
	}
	if err := enc.WriteUint8(1); err != nil {
		return err
	}
	return writeStrings(enc, ss)
}

func writeSkills(enc *bin.Encoder, skills []AgentSkill) error {
	if err := enc.WriteUint32(uint32(len(skills)), bin.LE); err != nil {
		return err
	}
	for _, s := range skills {
		if err := writeString(enc, s.ID); err != nil {
			return err
		}
		if err := writeString(enc, s.Name); err != nil {
			return err
		}
		if err := writeStrings(enc, s.Tags); err != nil {
			return err
		}
	}
	return nil
}

func writeOptionalSkills(enc *bin.Encoder, skills []AgentSkill) error {
	if skills == nil {
		return enc.WriteUint8(0)
	}
	if err := enc.WriteUint8(1); err != nil {
		return err
	}
	return writeSkills(enc, skills)
}

func (r *fieldReader) count(field string, max int) (int, error) {
	n, err := r.u32(field)
	if err != nil {
		return 0, err
	}
	if int64(n) > int64(max) {
		return 0, r.fail(field, fmt.Errorf("%w: %d > %d", errTooManyItems, n, max))
	}
	return int(n), nil
}

// strs reads a Vec<String>. An empty vector decodes as nil.
func (r *fieldReader) strs(field string, maxCount, maxLen int) ([]string, error) {
	n, err := r.count(field, maxCount)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = r.str(field, maxLen); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// optionalStrs reads an Option<Vec<String>>. Some(empty) decodes as a
// non-nil empty slice so it survives a round trip.
func (r *fieldReader) optionalStrs(field string, maxCount, maxLen int) ([]string, error) {
	ok, err := r.present(field)
	if err != nil || !ok {
		return nil, err
	}
	out, err := r.strs(field, maxCount, maxLen)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (r *fieldReader) skills(field string) ([]AgentSkill, error) {
	n, err := r.count(field, MaxSkills)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]AgentSkill, n)
	for i := range out {
		s := &out[i]
		if s.ID, err = r.str(field+".id", MaxSkillIDLen); err != nil {
			return nil, err
		}
		if s.Name, err = r.str(field+".name", MaxSkillNameLen); err != nil {
			return nil, err
		}
		if s.Tags, err = r.strs(field+".tags", MaxSkillTags, MaxSkillTagLen); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *fieldReader) optionalSkills(field string) ([]AgentSkill, error) {
	ok, err := r.present(field)
	if err != nil || !ok {
		return nil, err
	}
	out, err := r.skills(field)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []AgentSkill{}
	}
	return out, nil
}

// hasAllTags reports whether every wanted tag appears in have, ignoring case.
func hasAllTags(have, want []string) bool {
	for _, w := range want {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		found := false
		for _, h := range have {
			if strings.EqualFold(h, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func skillNames(skills []AgentSkill) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		out = append(out, s.Name)
	}
	return out
}

// skillTags flattens skill ids and skill tags so tag filters also match skills.
func skillTags(skills []AgentSkill) []string {
	var out []string
	for _, s := range skills {
		out = append(out, s.ID)
		out = append(out, s.Tags...)
	}
	return out
}
