// Package jobposting defines the extracted job-posting record and the
// coercion layer that turns untrusted LLM output into a fully-typed value.
package jobposting

import (
	"regexp"
	"strconv"
	"strings"
)

// JobPosting is the structured result of one import. Every field carries a
// type-correct zero default; none of them is ever null in JSON output.
type JobPosting struct {
	CompanyName        string `json:"company_name"`
	CompanyLogo        string `json:"company_logo"`
	JobTitle           string `json:"job_title"`
	LocationCity       string `json:"location_city"`
	Country            string `json:"country"`
	NumberOfApplicants int    `json:"number_of_applicants"`
	JobDescription     string `json:"job_description"`
}

var (
	nonDigits      = regexp.MustCompile(`[^\d]`)
	paragraphBreak = regexp.MustCompile(`\n{3,}`)
)

// Coerce converts an arbitrary decoded JSON value into a JobPosting. It
// returns nil when raw is not an object or when none of the expected keys
// carries a usable value, and it never panics: malformed fields degrade to
// their zero default instead.
func Coerce(raw any) *JobPosting {
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return nil
	}

	p := &JobPosting{
		CompanyName:        stringField(obj["company_name"]),
		CompanyLogo:        stringField(obj["company_logo"]),
		JobTitle:           stringField(obj["job_title"]),
		LocationCity:       stringField(obj["location_city"]),
		Country:            stringField(obj["country"]),
		NumberOfApplicants: intField(obj["number_of_applicants"]),
		JobDescription:     descriptionField(obj["job_description"]),
	}

	if p.CompanyName == "" && p.CompanyLogo == "" && p.JobTitle == "" &&
		p.LocationCity == "" && p.Country == "" && p.JobDescription == "" &&
		p.NumberOfApplicants == 0 {
		return nil
	}
	return p
}

func stringField(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// descriptionField keeps paragraph breaks but collapses runs of three or
// more newlines down to the double-newline paragraph separator.
func descriptionField(v any) string {
	s := stringField(v)
	if s == "" {
		return ""
	}
	return paragraphBreak.ReplaceAllString(s, "\n\n")
}

// intField parses the applicant count from a JSON number or a free-form
// string such as "1,234 applicants". Negative numeric input is clamped to
// zero; string input keeps its digits only, so a leading minus sign is
// dropped rather than honored.
func intField(v any) int {
	switch t := v.(type) {
	case float64:
		n := int(t)
		if n < 0 {
			return 0
		}
		return n
	case int:
		if t < 0 {
			return 0
		}
		return t
	case string:
		digits := nonDigits.ReplaceAllString(t, "")
		if digits == "" {
			return 0
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
