package quiz

import (
	"fmt"
	"math"
)

// PassThreshold is the minimum percentage of correct answers needed to pass.
const PassThreshold = 70.0

// Question is the answer key for a single quiz question.
type Question struct {
	ID            int
	CorrectOption int
}

// Answers maps a question ID to the option index the learner selected.
type Answers map[int]int

// Result is the outcome of evaluating a set of answers.
type Result struct {
	Score      int
	Total      int
	Percentage float64
	Passed     bool
}

// Evaluate scores answers against the answer key. A question with no entry in
// answers counts as incorrect. An empty quiz never passes.
func Evaluate(questions []Question, answers Answers) Result {
	r := Result{Total: len(questions)}
	for _, q := range questions {
		if sel, ok := answers[q.ID]; ok && sel == q.CorrectOption {
			r.Score++
		}
	}
	if r.Total == 0 {
		return r
	}
	r.Percentage = 100 * float64(r.Score) / float64(r.Total)
	r.Passed = r.Percentage >= PassThreshold
	return r
}

// Unanswered returns the IDs of questions that have no answer, in quiz order.
func Unanswered(questions []Question, answers Answers) []int {
	var missing []int
	for _, q := range questions {
		if _, ok := answers[q.ID]; !ok {
			missing = append(missing, q.ID)
		}
	}
	return missing
}

// Display formats the result for humans, e.g. "5/7 (71.43%)".
func (r Result) Display() string {
	return fmt.Sprintf("%d/%d (%.2f%%)", r.Score, r.Total, math.Round(r.Percentage*100)/100)
}

// Clone returns a copy of the answers map.
func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
