package grading

// Answers is the read side of a recorded attempt: the option chosen for a
// question index, if any.
type Answers interface {
	Get(index int) (string, bool)
}

// Count returns how many questions were answered with exactly the correct
// option. correct[i] is the correct option of question i. Unanswered
// questions never count, even when the correct option is empty.
func Count(correct []string, answers Answers) int {
	n := 0
	for i, want := range correct {
		got, ok := answers.Get(i)
		if ok && got == want {
			n++
		}
	}
	return n
}

// Result is a graded attempt.
type Result struct {
	Score int
	Total int
}

func Grade(correct []string, answers Answers) Result {
	return Result{Score: Count(correct, answers), Total: len(correct)}
}
