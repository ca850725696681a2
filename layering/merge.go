package layering

import "github.com/goliatone/go-slsconfig/document"

// MergeLayers composes document trees ordered from strongest to weakest. The
// result is a fresh tree: mappings merge key by key, a nil layer contributes
// nothing, and any other value from a stronger layer replaces the weaker one
// outright, sequences included.
func MergeLayers(layers ...any) any {
	if len(layers) == 0 {
		return nil
	}

	merged := document.Clone(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeValue(layers[i], merged)
	}
	return merged
}

// Override applies overrides on top of base and returns the merged mapping.
// base is left untouched.
func Override(base, overrides map[string]any) map[string]any {
	if len(overrides) == 0 {
		if base == nil {
			return nil
		}
		return document.Clone(base).(map[string]any)
	}
	merged, _ := MergeLayers(overrides, base).(map[string]any)
	return merged
}

func mergeValue(strong, weak any) any {
	if strong == nil {
		return weak
	}

	strongMap, ok := strong.(map[string]any)
	if !ok {
		return document.Clone(strong)
	}
	weakMap, ok := weak.(map[string]any)
	if !ok {
		return document.Clone(strongMap)
	}

	result := make(map[string]any, len(weakMap)+len(strongMap))
	for key, value := range weakMap {
		result[key] = value
	}
	for key, value := range strongMap {
		if existing, ok := result[key]; ok {
			result[key] = mergeValue(value, existing)
			continue
		}
		result[key] = document.Clone(value)
	}
	return result
}
