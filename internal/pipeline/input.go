package pipeline

import (
	"strings"

	"resumind/internal/shared/util"
)

// File is the selected résumé.
type File struct {
	Name string
	Data []byte
}

// Size is the file length in bytes.
func (f *File) Size() int64 { return int64(len(f.Data)) }

// Summary renders "name (12.3 KB)".
func (f *File) Summary() string {
	return f.Name + " (" + util.MustFormatSize(f.Size()) + ")"
}

// Input is what the user submits.
type Input struct {
	File           *File
	CompanyName    string
	JobTitle       string
	JobDescription string
}

// ValidationError is a missing or invalid user input. Message is user-facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate checks the file first, then the job fields.
func (in Input) Validate() error {
	if in.File == nil || len(in.File.Data) == 0 {
		return &ValidationError{Field: "file", Message: "Please select a PDF file"}
	}
	if in.File.Name != "" && !util.IsPDFName(in.File.Name) {
		return &ValidationError{Field: "file", Message: "Please select a PDF file"}
	}
	title := strings.TrimSpace(in.JobTitle) != ""
	desc := strings.TrimSpace(in.JobDescription) != ""
	switch {
	case !title && !desc:
		return &ValidationError{Field: "jobTitle,jobDescription", Message: "Please fill in Job Title and Job Description"}
	case !title:
		return &ValidationError{Field: "jobTitle", Message: "Please fill in Job Title"}
	case !desc:
		return &ValidationError{Field: "jobDescription", Message: "Please fill in Job Description"}
	}
	return nil
}
