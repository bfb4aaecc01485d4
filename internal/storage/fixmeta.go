package storage

import (
	"encoding/json"

	"soar/internal/model"
)

// chFixMeta is the JSON wire shape for model.FixMeta, kept as a small
// adapter type rather than marshaling FixMeta directly so storage's
// on-disk encoding can evolve independently of the in-memory struct.
type chFixMeta struct {
	PositionAgeMillis int64             `json:"position_age_millis"`
	Trigger           string            `json:"trigger"`
	Extra             map[string]string `json:"extra,omitempty"`
}

func encodeFixMeta(m model.FixMeta) (string, error) {
	b, err := json.Marshal(chFixMeta{
		PositionAgeMillis: m.PositionAgeMillis,
		Trigger:           m.Trigger,
		Extra:             m.Extra,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeFixMeta(s string) model.FixMeta {
	if s == "" {
		return model.FixMeta{}
	}
	var m chFixMeta
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return model.FixMeta{}
	}
	return model.FixMeta{
		PositionAgeMillis: m.PositionAgeMillis,
		Trigger:           m.Trigger,
		Extra:             m.Extra,
	}
}
