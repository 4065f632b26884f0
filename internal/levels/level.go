package levels

// Task is a binary-completion learning activity within a level.
type Task struct {
	ID    int
	Title string
}

// Question is a multiple-choice quiz question.
type Question struct {
	ID            int
	Text          string
	Options       []string
	CorrectOption int
	Explanation   string
}

// Level is one unit of the course: a story, tasks, a quiz and a reward.
// Level content is static configuration and never comes from user input.
type Level struct {
	ID          int
	Title       string
	Story       string
	Tasks       []Task
	Questions   []Question
	RewardMoney int
	BadgeName   string
}

// RequiredTaskIDs returns the IDs of all tasks that must be done to finish
// the level. Every task in a level is required.
func (l Level) RequiredTaskIDs() []int {
	ids := make([]int, len(l.Tasks))
	for i, t := range l.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// QuestionByID returns the question with the given ID, or nil.
func (l Level) QuestionByID(id int) *Question {
	for i := range l.Questions {
		if l.Questions[i].ID == id {
			return &l.Questions[i]
		}
	}
	return nil
}

// HasTask reports whether the level declares a task with the given ID.
func (l Level) HasTask(id int) bool {
	for _, t := range l.Tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}
