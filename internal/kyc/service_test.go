package kyc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubmission() Submission {
	return Submission{
		FullName:       "Ada Lovelace",
		DateOfBirth:    "1990-12-10",
		Country:        "gb",
		DocumentType:   "Passport",
		DocumentNumber: "P1234567",
	}
}

func TestValidateSubmissionNormalizes(t *testing.T) {
	sub, err := validateSubmission(validSubmission())
	require.NoError(t, err)
	assert.Equal(t, "GB", sub.Country)
	assert.Equal(t, "passport", sub.DocumentType)
}

func TestValidateSubmissionTrimsWhitespace(t *testing.T) {
	in := validSubmission()
	in.FullName = "  Ada Lovelace  "
	in.DocumentNumber = " P1234567 "
	sub, err := validateSubmission(in)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", sub.FullName)
	assert.Equal(t, "P1234567", sub.DocumentNumber)
}

func TestValidateSubmissionRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Submission)
	}{
		{"empty name", func(s *Submission) { s.FullName = "   " }},
		{"empty document number", func(s *Submission) { s.DocumentNumber = "" }},
		{"long country", func(s *Submission) { s.Country = "GBR" }},
		{"empty country", func(s *Submission) { s.Country = "" }},
		{"unknown document type", func(s *Submission) { s.DocumentType = "library_card" }},
		{"bad date", func(s *Submission) { s.DateOfBirth = "10/12/1990" }},
		{"empty date", func(s *Submission) { s.DateOfBirth = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validSubmission()
			tc.mutate(&in)
			_, err := validateSubmission(in)
			assert.Error(t, err)
		})
	}
}
