package llm

import "fmt"

const (
	// AnalysisTemperature and AnalysisMaxTokens are sent with every analysis request.
	AnalysisTemperature = 0.7
	AnalysisMaxTokens   = 4000

	// AnalysisSystemInstruction forbids markdown wrapping of the JSON answer.
	AnalysisSystemInstruction = "You are a helpful assistant that always responds with valid JSON only. Never include markdown formatting or code blocks in your responses."
)

const analysisInstructions = `You are an expert in ATS (Applicant Tracking System) and resume analysis.
Please analyze and rate this resume and suggest how to improve it.
Be thorough and detailed. If there is a lot to improve, don't hesitate to give low scores.
Use the job title and job description to tailor the feedback.

Return ONLY a valid JSON object (no markdown, no backticks, no extra text) with this shape:
{
  "overallScore": number,
  "ATS": { "score": number, "tips": { "type": "good" | "improve", "tip": string }[] },
  "toneAndStyle": { "score": number, "tips": { "type": "good" | "improve", "tip": string, "explanation": string }[] },
  "content": { "score": number, "tips": { "type": "good" | "improve", "tip": string, "explanation": string }[] },
  "structure": { "score": number, "tips": { "type": "good" | "improve", "tip": string, "explanation": string }[] },
  "skills": { "score": number, "tips": { "type": "good" | "improve", "tip": string, "explanation": string }[] }
}
All scores are integers from 0 to 100.`

// BuildAnalysisPrompt combines the fixed instructions, the job fields and the
// full résumé text into one user prompt.
func BuildAnalysisPrompt(resumeText, jobTitle, jobDescription string) string {
	return fmt.Sprintf("%s\n\nJob title: %s\nJob description: %s\n\nResume:\n%s",
		analysisInstructions, jobTitle, jobDescription, resumeText)
}

// AnalysisRequest builds the completion request for one résumé analysis.
func AnalysisRequest(resumeText, jobTitle, jobDescription string) CompletionRequest {
	return CompletionRequest{
		System:      AnalysisSystemInstruction,
		Prompt:      BuildAnalysisPrompt(resumeText, jobTitle, jobDescription),
		Temperature: AnalysisTemperature,
		MaxTokens:   AnalysisMaxTokens,
		JSONMode:    true,
	}
}
