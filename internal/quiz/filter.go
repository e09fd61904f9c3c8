package quiz

import "github.com/conorfennell/knolstudy/internal/domain"

// Filter narrows the question pool a session is drawn from.
// Zero values disable each criterion.
type Filter struct {
	Difficulty domain.Difficulty
	Tags       []string
	Limit      int
}

// Select returns the questions matching f in their original order.
// A question matches Tags when it carries any of them.
func Select(questions []domain.MCQ, f Filter) []domain.MCQ {
	var out []domain.MCQ
	for _, q := range questions {
		if f.Difficulty != "" && q.Difficulty != f.Difficulty {
			continue
		}
		if len(f.Tags) > 0 && !anyTag(q.Tags, f.Tags) {
			continue
		}
		out = append(out, q)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func anyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
