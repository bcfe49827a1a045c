package domain

import (
	"strings"
	"time"
)

// TestCaseStatus is the execution state of a test case.
type TestCaseStatus string

const (
	StatusNew     TestCaseStatus = "new"
	StatusPass    TestCaseStatus = "Pass"
	StatusFail    TestCaseStatus = "Fail"
	StatusPending TestCaseStatus = "Pending"
)

// IsNew reports whether the status is "new", ignoring case.
func (s TestCaseStatus) IsNew() bool {
	return strings.EqualFold(string(s), string(StatusNew))
}

// TestCase is a single generated test case record.
type TestCase struct {
	TestCaseID     string         `json:"test_case_id" yaml:"test_case_id"`
	UniqueID       string         `json:"unique_id" yaml:"unique_id"`
	Title          string         `json:"title" yaml:"title"`
	ModuleFeature  string         `json:"module_feature" yaml:"module_feature"`
	Priority       string         `json:"priority" yaml:"priority"`
	Preconditions  string         `json:"preconditions" yaml:"preconditions"`
	TestSteps      []string       `json:"test_steps" yaml:"test_steps"`
	TestData       string         `json:"test_data" yaml:"test_data"`
	ExpectedResult string         `json:"expected_result" yaml:"expected_result"`
	ActualResult   string         `json:"actual_result" yaml:"actual_result"`
	Status         TestCaseStatus `json:"status" yaml:"status"`
	Version        int64          `json:"version" yaml:"-"`
}

// UpdatedTestCase is a test case returned from an update, decorated with the
// caller's project and chat.
type UpdatedTestCase struct {
	TestCase
	ProjectID int64     `json:"project_id"`
	ChatID    int64     `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TestCaseUpdate is the payload of the update endpoint.
type TestCaseUpdate struct {
	ChatID     int64  `json:"chat_id"`
	ProjectID  int64  `json:"project_id"`
	TestCaseID string `json:"test_case_id"`
	UniqueID   string `json:"unique_id"`
	Comment    string `json:"comment"`
}
