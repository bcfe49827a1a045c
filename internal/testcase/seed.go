package testcase

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// LoadSeed returns the built-in sample test cases.
func LoadSeed() ([]domain.TestCase, error) {
	return ParseSeed(seedYAML)
}

// ParseSeed decodes a YAML list of test cases. Missing unique ids are
// generated and a missing status defaults to "new".
func ParseSeed(data []byte) ([]domain.TestCase, error) {
	var cases []domain.TestCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("decode seed test cases: %w", err)
	}

	for i := range cases {
		tc := &cases[i]
		if tc.TestCaseID == "" {
			return nil, fmt.Errorf("seed test case %d: test_case_id is required", i)
		}
		if tc.UniqueID == "" {
			tc.UniqueID = NewUniqueID(tc.TestCaseID)
		}
		if tc.Status == "" {
			tc.Status = domain.StatusNew
		}
	}
	return cases, nil
}

// NewUniqueID derives a readable unique id such as "TC001-1f3a9c2e".
func NewUniqueID(legacyID string) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return legacyID + "-" + suffix
}
