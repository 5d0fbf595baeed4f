// Package classify sorts articles into topic folders by keyword.
package classify

import "strings"

// Category names a storage subdirectory
type Category string

const (
	Cancer                 Category = "Cancer"
	LactationBreastfeeding Category = "Lactation_Breastfeeding"
	SurgeryCosmetic        Category = "Surgery_Cosmetic"
	BenignConditions       Category = "Benign_Conditions"
	GeneralBiology         Category = "General_Biology"
)

// Rule maps any of its keywords to a category
type Rule struct {
	Category Category
	Keywords []string
}

// DefaultRules are checked in order; the first rule with a matching keyword wins
var DefaultRules = []Rule{
	{Cancer, []string{"cancer", "carcinoma", "malignant", "tumor", "neoplasm", "metastasis"}},
	{LactationBreastfeeding, []string{"lactation", "breastfeeding", "milk", "postpartum"}},
	{SurgeryCosmetic, []string{"surgery", "plastic", "reconstruction", "implant", "augmentation", "mammoplasty"}},
	{BenignConditions, []string{"cyst", "mastitis", "fibroadenoma", "benign", "abscess"}},
}

// Classify matches title and abstract against DefaultRules
func Classify(title, abstract string) Category {
	return ClassifyWith(DefaultRules, title, abstract)
}

// ClassifyWith matches title and abstract against rules, case-insensitively.
// Text matching no rule is GeneralBiology.
func ClassifyWith(rules []Rule, title, abstract string) Category {
	text := strings.ToLower(title + " " + abstract)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Category
			}
		}
	}
	return GeneralBiology
}
