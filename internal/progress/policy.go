package progress

import "github.com/abhisek/investory/internal/quiz"

// CanAccessLevel reports whether a learner at currentLevel may open levelID.
// The backend makes the final decision; this only drives the UI.
func CanAccessLevel(levelID, currentLevel int) bool {
	return currentLevel >= levelID
}

// CanCompleteLevel reports whether the recorded quiz outcome clears the
// pass threshold. A level without a recorded attempt cannot be completed.
func CanCompleteLevel(lp LevelProgress) bool {
	if lp.TotalQuestions == 0 {
		return false
	}
	return 100*float64(lp.QuizScore)/float64(lp.TotalQuestions) >= quiz.PassThreshold
}
