package core

import "strings"

// DefaultCategoryName is used when no dictionary entry matches.
const DefaultCategoryName = "Прочее"

// CategoryRule maps keyword substrings to a category.
type CategoryRule struct {
	Keywords []string
	Name     string
	Polarity Polarity
}

// MatchedCategory is the result of ClassifyCategory.
type MatchedCategory struct {
	Name     string
	Polarity Polarity
}

// CategoryDictionary is evaluated top to bottom and the first match wins.
// Income rules are listed first so "зарплата, потратил на такси" is income.
var CategoryDictionary = []CategoryRule{
	// income
	{Keywords: []string{"зарплата", "зп", "salary", "оклад"}, Name: "Зарплата", Polarity: Income},
	{Keywords: []string{"доход", "прибыль", "выручка"}, Name: "Доход", Polarity: Income},
	{Keywords: []string{"перевод", "получил", "получено"}, Name: "Перевод", Polarity: Income},
	{Keywords: []string{"подарок", "бонус", "кешбэк", "cashback"}, Name: "Бонус", Polarity: Income},
	// expense
	{Keywords: []string{"еда", "продукты", "магазин", "пятерочка", "перекресток", "ашан", "лента"}, Name: "Продукты", Polarity: Expense},
	{Keywords: []string{"кофе", "кафе", "ресторан", "обед", "ужин", "завтрак", "столовая"}, Name: "Еда вне дома", Polarity: Expense},
	{Keywords: []string{"такси", "uber", "яндекс", "бензин", "заправка", "транспорт", "метро", "автобус"}, Name: "Транспорт", Polarity: Expense},
	{Keywords: []string{"подписка", "нетфликс", "spotify", "яндекс плюс", "мегафон", "мтс", "билайн", "связь", "интернет"}, Name: "Подписки и связь", Polarity: Expense},
	{Keywords: []string{"аренда", "квартира", "коммуналка", "жкх", "электричество"}, Name: "Жильё", Polarity: Expense},
	{Keywords: []string{"здоровье", "аптека", "врач", "медицина", "лекарств"}, Name: "Здоровье", Polarity: Expense},
	{Keywords: []string{"одежда", "одежду", "обувь", "магазин одежды"}, Name: "Одежда", Polarity: Expense},
	{Keywords: []string{"развлечен", "кино", "игр", "игры", "хобби"}, Name: "Развлечения", Polarity: Expense},
}

// ClassifyCategory returns the first dictionary category whose keyword occurs
// in text, or DefaultCategoryName with Expense polarity.
func ClassifyCategory(text string) MatchedCategory {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range CategoryDictionary {
		if rule.matches(lower) {
			return MatchedCategory{Name: rule.Name, Polarity: rule.Polarity}
		}
	}
	return MatchedCategory{Name: DefaultCategoryName, Polarity: Expense}
}

func (r CategoryRule) matches(lower string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
