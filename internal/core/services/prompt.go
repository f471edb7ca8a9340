package services

import (
	"strings"

	"avito-assist/internal/core/domain"
)

var basePrompts = map[domain.BusinessCategory]string{
	domain.CategoryServices: "Ты — ассистент для продажи услуг на Avito. " +
		"Отвечай на вопросы клиентов об услугах, условиях работы, стоимости и сроках.",
	domain.CategoryGoods: "Ты — ассистент для продажи товаров на Avito. " +
		"Отвечай на вопросы о товаре, его характеристиках и состоянии, доставке и оплате.",
	domain.CategoryRealEstate: "Ты — ассистент по недвижимости на Avito. " +
		"Отвечай на вопросы об объекте, условиях аренды или продажи, документах и просмотрах.",
	domain.CategoryAuto: "Ты — ассистент по продаже автомобилей на Avito. " +
		"Отвечай на вопросы о состоянии автомобиля, комплектации, истории и документах.",
}

const fallbackPrompt = "Ты — ассистент для чатов на Avito. Отвечай на вопросы клиентов вежливо и по существу."

var tonePrompts = map[domain.Tone]string{
	domain.ToneFormal:   "Используй формальный стиль общения, обращайся к клиенту на «Вы».",
	domain.ToneFriendly: "Общайся дружелюбно и неформально, но оставайся профессиональным.",
	domain.ToneNeutral:  "Общайся нейтрально и профессионально.",
}

const (
	priceNegotiable = "Клиент может просить скидку. Можно обсуждать снижение цены, " +
		"но окончательное решение принимает владелец. Не называй конкретных сумм скидки без согласования."
	priceFixed = "Цена указана в объявлении и не подлежит обсуждению. " +
		"Вежливо сообщи клиенту, что цена фиксированная."
)

const closingRules = "Общие правила:\n" +
	"- Всегда отвечай на русском языке\n" +
	"- Будь кратким и по делу\n" +
	"- Если не знаешь точного ответа, честно скажи об этом\n" +
	"- Не придумывай информацию, которой нет в контексте"

// BuildSystemPrompt assembles the system instruction for the completion
// service. Sections are appended in a fixed order and the output depends on
// nothing but the arguments.
func BuildSystemPrompt(project *domain.Project, itemContext string) string {
	var b strings.Builder

	base, ok := basePrompts[project.BusinessCategory]
	if !ok {
		base = fallbackPrompt
	}
	b.WriteString(base)

	if itemContext != "" {
		b.WriteString("\n\nИнформация об объявлении:\n")
		b.WriteString(itemContext)
	}

	if tone, ok := tonePrompts[project.Tone]; ok {
		b.WriteString("\n")
		b.WriteString(tone)
	}

	b.WriteString("\n\n")
	if project.AllowPriceDiscussion {
		b.WriteString(priceNegotiable)
	} else {
		b.WriteString(priceFixed)
	}

	if extra := strings.TrimSpace(project.ExtraInstructions); extra != "" {
		b.WriteString("\n\nДополнительные указания владельца:\n")
		b.WriteString(extra)
	}

	b.WriteString("\n\n")
	b.WriteString(closingRules)

	return b.String()
}
