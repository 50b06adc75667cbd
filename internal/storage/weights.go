package storage

import "encoding/json"

// EncodeWeights serializes an ensemble weight map for the weights_json
// column shared by the decisions and learning_state tables.
func EncodeWeights(weights map[string]float64) (string, error) {
	if weights == nil {
		return "{}", nil
	}
	b, err := json.Marshal(weights)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeWeights(raw string) (map[string]float64, error) {
	if raw == "" {
		return nil, nil
	}
	var weights map[string]float64
	if err := json.Unmarshal([]byte(raw), &weights); err != nil {
		return nil, err
	}
	return weights, nil
}
