package elastic

import (
	"context"
	"encoding/json"
	"net/http"
)

// PrefixMatchWeightSetting is the flat name of the prefix-match weight in an index mapping _meta
const PrefixMatchWeightSetting = "index.suggest.prefix_match_weight"

// PrefixMatchWeight reads the weight from the mapping _meta of an index or alias. For an alias
// the largest weight of its indices wins; a missing index has no weight.
func (e *Engine) PrefixMatchWeight(ctx context.Context, idx string) (float64, error) {
	res, err := e.es.Indices.GetMapping(
		e.es.Indices.GetMapping.WithIndex(idx),
		e.es.Indices.GetMapping.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, responseError(res)
	}

	var mappings map[string]struct {
		Mappings struct {
			Meta map[string]interface{} `json:"_meta"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mappings); err != nil {
		return 0, err
	}
	weight := 0.0
	for _, m := range mappings {
		if w := metaWeight(m.Mappings.Meta); w > weight {
			weight = w
		}
	}
	return weight, nil
}
