// Package faq はFAQ項目の一覧と検索を提供する。
package faq

import (
	"slices"
	"strings"

	"github.com/hitoshi/labtrack/internal/model"
)

// AllCategories はカテゴリで絞り込まないことを表す値。
const AllCategories = "all"

var items = []model.FAQItem{
	{
		ID:       "1",
		Question: "What is the Lab Dashboard system?",
		Answer:   "The Lab Dashboard is a comprehensive platform designed to help laboratories track their environmental impact, manage memberships, and implement sustainable practices. It provides tools for monitoring energy usage, carbon emissions, and offers personalized recommendations for reducing environmental footprint.",
		Category: "General",
		Tags:     []string{"dashboard", "overview", "platform"},
	},
	{
		ID:       "2",
		Question: "How do I join a laboratory?",
		Answer:   "To join a laboratory, navigate to the Dashboard page and browse available laboratories. Click on \"Join Lab\" for any laboratory you're interested in. You'll need to complete a brief assessment questionnaire before your membership is confirmed.",
		Category: "Membership",
		Tags:     []string{"join", "laboratory", "membership", "process"},
	},
	{
		ID:       "3",
		Question: "What is the laboratory assessment for?",
		Answer:   "The laboratory assessment helps us understand your lab's current practices and equipment usage. Based on your answers, we provide personalized recommendations for reducing energy consumption and environmental impact. The assessment covers monitor usage, freezer operations, and other energy-intensive equipment.",
		Category: "Assessment",
		Tags:     []string{"assessment", "recommendations", "energy", "sustainability"},
	},
	{
		ID:       "4",
		Question: "How are energy usage and emissions calculated?",
		Answer:   "Our calculations are based on industry-standard models that consider equipment specifications, usage patterns, and operational parameters. We use established conversion factors for different types of laboratory equipment and their typical energy consumption patterns.",
		Category: "Calculations",
		Tags:     []string{"energy", "emissions", "calculation", "methodology"},
	},
	{
		ID:       "5",
		Question: "Can I leave a laboratory after joining?",
		Answer:   "Yes, you can leave a laboratory at any time by clicking the \"Leave Lab\" button on the laboratory card in your dashboard. Your assessment data will be retained for historical analysis but will no longer be actively used for recommendations.",
		Category: "Membership",
		Tags:     []string{"leave", "laboratory", "membership", "data"},
	},
	{
		ID:       "6",
		Question: "What recommendations do you provide?",
		Answer:   "Our recommendations are tailored based on your assessment responses and may include suggestions for reducing monitor usage, optimizing freezer temperatures, implementing energy-efficient practices, and adopting sustainable laboratory protocols.",
		Category: "Recommendations",
		Tags:     []string{"recommendations", "sustainability", "efficiency", "practices"},
	},
	{
		ID:       "7",
		Question: "Is my data secure and private?",
		Answer:   "Yes, we take data security and privacy seriously. All data is encrypted in transit and at rest. We follow industry-standard security practices and comply with relevant data protection regulations. Your personal information is never shared with third parties without your explicit consent.",
		Category: "Privacy",
		Tags:     []string{"privacy", "security", "data", "protection"},
	},
	{
		ID:       "8",
		Question: "How often should I update my assessment?",
		Answer:   "We recommend updating your assessment whenever there are significant changes to your laboratory setup, equipment, or practices. This ensures that our recommendations remain relevant and accurate. You can update your assessment at any time through the dashboard.",
		Category: "Assessment",
		Tags:     []string{"update", "assessment", "frequency", "changes"},
	},
	{
		ID:       "9",
		Question: "What if I have multiple laboratories?",
		Answer:   "You can join multiple laboratories and manage them all from your dashboard. Each laboratory will have its own assessment and recommendations. You can switch between laboratories and view their individual environmental impact data.",
		Category: "Membership",
		Tags:     []string{"multiple", "laboratories", "management", "dashboard"},
	},
	{
		ID:       "10",
		Question: "How can I contact support?",
		Answer:   "You can contact our support team through the help section in your dashboard or by emailing support@labdashboard.com. We typically respond within 24 hours and are available to help with any questions or technical issues.",
		Category: "Support",
		Tags:     []string{"support", "contact", "help", "technical"},
	},
}

// All はすべてのFAQ項目のコピーを返す。
func All() []model.FAQItem {
	out := make([]model.FAQItem, len(items))
	for i, item := range items {
		item.Tags = slices.Clone(item.Tags)
		out[i] = item
	}
	return out
}

// Categories は先頭にAllCategoriesを置き、出現順に重複を除いたカテゴリ一覧を返す。
func Categories(list []model.FAQItem) []string {
	categories := []string{AllCategories}
	for _, item := range list {
		if !slices.Contains(categories, item.Category) {
			categories = append(categories, item.Category)
		}
	}
	return categories
}

// Filter は質問・回答・タグのいずれかにqueryを含み（大文字小文字を区別しない）、
// かつカテゴリが一致する項目を返す。categoryが空またはAllCategoriesなら絞り込まない。
func Filter(list []model.FAQItem, query, category string) []model.FAQItem {
	q := strings.ToLower(strings.TrimSpace(query))
	result := make([]model.FAQItem, 0, len(list))
	for _, item := range list {
		if category != "" && category != AllCategories && item.Category != category {
			continue
		}
		if q != "" && !matches(item, q) {
			continue
		}
		result = append(result, item)
	}
	return result
}

func matches(item model.FAQItem, q string) bool {
	if strings.Contains(strings.ToLower(item.Question), q) ||
		strings.Contains(strings.ToLower(item.Answer), q) {
		return true
	}
	return slices.ContainsFunc(item.Tags, func(tag string) bool {
		return strings.Contains(strings.ToLower(tag), q)
	})
}

// Expanded は展開表示中のFAQ項目IDの集合。
type Expanded map[string]struct{}

// Toggle はidの展開状態を反転し、反転後に展開されていればtrueを返す。
func (e Expanded) Toggle(id string) bool {
	if _, ok := e[id]; ok {
		delete(e, id)
		return false
	}
	e[id] = struct{}{}
	return true
}

// Has はidが展開されているかどうかを返す。
func (e Expanded) Has(id string) bool {
	_, ok := e[id]
	return ok
}
