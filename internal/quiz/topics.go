package quiz

import (
	"strings"

	"github.com/jira369/Leben-in-Deutschland/internal/model"
)

// Topic is a thematic grouping of federal questions, matched by keywords in the question text.
type Topic struct {
	Key      string
	Name     string
	Keywords []string
}

// CategoryFederalKey selects the whole federal pool as a practice category.
const CategoryFederalKey = "bundesweit"

// Topics is checked in order; Classify returns the first match.
var Topics = []Topic{
	{
		Key:  "geschichte",
		Name: "Geschichte und Verantwortung",
		Keywords: []string{
			"Geschichte", "Nationalsozialismus", "NS-Zeit", "1933", "1945", "Krieg", "DDR",
			"demokratisch", "Demokratie", "Verfolgung", "Holocaust", "Widerstand",
		},
	},
	{
		Key:  "verfassung",
		Name: "Verfassungsprinzipien",
		Keywords: []string{
			"Grundgesetz", "Verfassung", "Rechtsstaatlichkeit", "Gewaltenteilung", "Parlament",
			"Bundestag", "Bundesrat", "Verfassungsgericht", "Grundrechte", "Menschenrechte",
		},
	},
	{
		Key:  "mensch-gesellschaft",
		Name: "Mensch und Gesellschaft",
		Keywords: []string{
			"Religion", "Glaube", "Gleichberechtigung", "Toleranz", "Familie", "Ehe", "Frauen",
			"Männer", "Diskriminierung", "Integration", "Kultur",
		},
	},
	{
		Key:  "staat-buerger",
		Name: "Staat und Bürger",
		Keywords: []string{
			"Wahl", "wählen", "Partei", "Bürger", "Bürgerpflicht", "Steuern", "Sozialversicherung",
			"Personalausweis", "Pass", "Meldepflicht",
		},
	},
}

// LookupTopic returns the topic with the given key.
func LookupTopic(key string) (Topic, bool) {
	for _, t := range Topics {
		if t.Key == key {
			return t, true
		}
	}
	return Topic{}, false
}

// Matches reports whether the question text contains any of the topic's keywords,
// compared case-insensitively.
func (t Topic) Matches(q model.Question) bool {
	text := strings.ToLower(q.Text)
	for _, kw := range t.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Classify returns the first topic matching the question, if any.
func Classify(q model.Question) (Topic, bool) {
	for _, t := range Topics {
		if t.Matches(q) {
			return t, true
		}
	}
	return Topic{}, false
}

// IsCategoryKey reports whether key names a practice category: the federal pool,
// a state or a thematic topic.
func IsCategoryKey(key string) bool {
	if key == CategoryFederalKey || model.IsState(key) {
		return true
	}
	_, ok := LookupTopic(key)
	return ok
}

// FilterCategory returns the questions of bank belonging to the category key.
// Thematic topics only consider federal questions. Unknown keys yield nil.
func FilterCategory(bank []model.Question, key string) []model.Question {
	switch {
	case key == CategoryFederalKey:
		return filter(bank, model.Question.IsFederal)
	case model.IsState(key):
		return filter(bank, func(q model.Question) bool { return q.Category == key })
	}
	topic, ok := LookupTopic(key)
	if !ok {
		return nil
	}
	return filter(bank, func(q model.Question) bool {
		return q.IsFederal() && topic.Matches(q)
	})
}

func filter(qs []model.Question, keep func(model.Question) bool) []model.Question {
	var out []model.Question
	for _, q := range qs {
		if keep(q) {
			out = append(out, q)
		}
	}
	return out
}
