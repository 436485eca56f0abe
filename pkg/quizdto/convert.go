package quizdto

import "github.com/park285/campus-quiz-core/internal/domain"

// FromQuestions strips the answer key before questions leave the server.
func FromQuestions(qs []domain.Question) []Question {
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		out = append(out, Question{Text: q.Text, Options: append([]string(nil), q.Options...)})
	}
	return out
}

func FromProfile(p domain.Profile) Profile {
	return Profile{UserID: p.UserID, Name: p.Name, Handle: p.Handle, AvatarURL: p.AvatarURL}
}

func (p *Profile) ToDomain(userID string) domain.Profile {
	if p == nil {
		return domain.Profile{UserID: userID}
	}
	return domain.Profile{UserID: userID, Name: p.Name, Handle: p.Handle, AvatarURL: p.AvatarURL}
}
