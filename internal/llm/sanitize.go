package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/financials-mapper/constants"
	"github.com/joseph-ayodele/financials-mapper/internal/common"
	"github.com/joseph-ayodele/financials-mapper/internal/entity"
	"github.com/joseph-ayodele/financials-mapper/internal/parser"
)

// StripCodeFences removes a ```json ... ``` wrapper and any prose around the object.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimSpace(s), "json")
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}

// NormalizeResponse reshapes a loosely formed answer into the ResponseSchema shape:
//   - mapped keys are resolved by key or display label; unknown keys move to unmapped
//   - numeric strings are parsed, nulls and non-numbers dropped
//   - unmapped items accept label/value spellings and stringify values
//   - any other top-level key is removed
func NormalizeResponse(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 4)
	mapped := map[string]any{}
	unmapped := make([]map[string]any, 0)

	src, _ := m["mapped"].(map[string]any)
	if src == nil {
		src, _ = m["fields"].(map[string]any)
	}
	names := make([]string, 0, len(src))
	for k := range src {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		v, ok := coerceNumber(src[name])
		if !ok {
			dropped = append(dropped, name+"(value)")
			continue
		}
		key, known := resolveKey(name)
		if !known {
			unmapped = append(unmapped, map[string]any{"rawLabel": name, "rawValue": formatNumber(v)})
			dropped = append(dropped, name+"(unknown)")
			continue
		}
		if _, dup := mapped[string(key)]; dup {
			dropped = append(dropped, name+"(duplicate)")
			continue
		}
		mapped[string(key)] = v
	}

	items, _ := m["unmapped"].([]any)
	if items == nil {
		items, _ = m["unmappedFields"].([]any)
	}
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("unmapped[%d](type)", i))
			continue
		}
		label := firstString(obj, "rawLabel", "raw_label", "label")
		if label == "" {
			dropped = append(dropped, fmt.Sprintf("unmapped[%d](label)", i))
			continue
		}
		unmapped = append(unmapped, map[string]any{
			"rawLabel": label,
			"rawValue": firstString(obj, "rawValue", "raw_value", "value"),
		})
	}

	out, err := json.Marshal(map[string]any{"mapped": mapped, "unmapped": unmapped})
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// ParseResponse turns raw model text into an Extraction. Empty or malformed
// answers yield common.ErrNoResult.
func ParseResponse(raw string, logger *slog.Logger) (*Extraction, error) {
	body := StripCodeFences(raw)
	if body == "" {
		return nil, fmt.Errorf("empty model response: %w", common.ErrNoResult)
	}
	clean, dropped, err := NormalizeResponse([]byte(body), logger)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrNoResult)
	}
	if err := ValidateJSONAgainstSchema(ResponseSchema(), clean); err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrNoResult)
	}

	var doc struct {
		Mapped   map[string]float64     `json:"mapped"`
		Unmapped []entity.UnmappedField `json:"unmapped"`
	}
	if err := json.Unmarshal(clean, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %v: %w", err, common.ErrNoResult)
	}

	ex := &Extraction{
		Mapped:   make(map[constants.CanonicalKey]float64, len(doc.Mapped)),
		Unmapped: doc.Unmapped,
		Dropped:  dropped,
		Raw:      clean,
	}
	for k, v := range doc.Mapped {
		ex.Mapped[constants.CanonicalKey(k)] = v
	}
	if ex.Unmapped == nil {
		ex.Unmapped = []entity.UnmappedField{}
	}
	return ex, nil
}

func resolveKey(name string) (constants.CanonicalKey, bool) {
	if k, ok := constants.ParseCanonicalKey(name); ok {
		return k, true
	}
	alt := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(name)))
	return constants.ParseCanonicalKey(alt)
}

func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		return parser.ParseAmount(t)
	default:
		return 0, false
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch t := obj[k].(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return formatNumber(t)
		}
	}
	return ""
}
