package evaluation

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/soberbookings/backend/internal/domain/entities"
)

// LoadGoldenCases reads and parses a golden assessment set from a JSON file.
func LoadGoldenCases(path string) ([]GoldenCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden cases file: %w", err)
	}

	var cases []GoldenCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse golden cases: %w", err)
	}

	return cases, nil
}

// ValidateGoldenCases checks that all golden cases have required fields and valid values.
func ValidateGoldenCases(cases []GoldenCase) error {
	seen := make(map[string]struct{}, len(cases))

	for i, c := range cases {
		if c.ID == "" {
			return fmt.Errorf("case at index %d: missing id", i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("case at index %d: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = struct{}{}

		if _, ok := entities.CanonicalCareLevel(c.Assessment.RecommendedLevel); !ok {
			return fmt.Errorf("case %q: invalid recommended level %q", c.ID, c.Assessment.RecommendedLevel)
		}
		if len(c.ExpectedIDs) == 0 {
			return fmt.Errorf("case %q: no expected facility ids", c.ID)
		}
		if !c.Difficulty.IsValid() {
			return fmt.Errorf("case %q: invalid difficulty %q (must be easy/medium/hard)", c.ID, c.Difficulty)
		}
	}

	return nil
}
