package grading

import "testing"

type mapAnswers map[int]string

func (m mapAnswers) Get(i int) (string, bool) {
	v, ok := m[i]
	return v, ok
}

func TestCount(t *testing.T) {
	cases := []struct {
		name    string
		correct []string
		answers mapAnswers
		want    int
	}{
		{"one of two", []string{"A", "B"}, mapAnswers{0: "A", 1: "A"}, 1},
		{"all", []string{"A", "B"}, mapAnswers{0: "A", 1: "B"}, 2},
		{"none answered", []string{"A", "B"}, mapAnswers{}, 0},
		{"unanswered empty key", []string{""}, mapAnswers{}, 0},
		{"case sensitive", []string{"yes"}, mapAnswers{0: "Yes"}, 0},
		{"index beyond questions ignored", []string{"A"}, mapAnswers{0: "A", 5: "A"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Count(tc.correct, tc.answers); got != tc.want {
				t.Fatalf("Count = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestGrade(t *testing.T) {
	r := Grade([]string{"A", "B", "C"}, mapAnswers{2: "C"})
	if r.Score != 1 || r.Total != 3 {
		t.Fatalf("got %+v", r)
	}
}
