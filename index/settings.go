package index

import "context"

// StaticSettings serves per-index prefix-match weights from configuration, for engines that
// carry no cluster metadata of their own
type StaticSettings map[string]float64

// PrefixMatchWeight returns the configured weight, 0 when none is configured
func (s StaticSettings) PrefixMatchWeight(_ context.Context, idx string) (float64, error) {
	return s[idx], nil
}
