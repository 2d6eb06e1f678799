package chat

import "strings"

// FallbackAnswer se devuelve cuando ninguna entrada de la tabla matchea.
const FallbackAnswer = "I'm sorry, I don't have specific information about that. " +
	"Please consult with a healthcare professional for accurate medical advice."

// Disclaimer acompaña toda respuesta del bot.
const Disclaimer = "This AI is not a substitute for professional medical advice."

type entry struct {
	Question string
	Answer   string
}

// La tabla de Q&A es estática: el "AI chat" es un lookup por substring,
// sin modelo detrás.
var knowledgeBase = []entry{
	{
		Question: "What are the side effects of aspirin?",
		Answer:   "Common side effects of aspirin include stomach irritation, nausea, and increased risk of bleeding. Always consult your doctor for personalized advice.",
	},
	{
		Question: "How often should I take my medication?",
		Answer:   "The frequency of medication intake depends on the specific prescription. Always follow your doctor's instructions or the label on your medication.",
	},
	{
		Question: "What should I do if I miss a dose?",
		Answer:   "If you miss a dose, take it as soon as you remember. However, if it's almost time for your next dose, skip the missed one. Don't double up on doses.",
	},
	{
		Question: "Can I take my medication with food?",
		Answer:   "It depends on the specific medication. Some are best taken with food to reduce stomach upset, while others should be taken on an empty stomach. Check your prescription or ask your pharmacist.",
	},
	{
		Question: "How should I store my medications?",
		Answer:   "Most medications should be stored in a cool, dry place away from direct sunlight. Some may require refrigeration. Always check the label for specific storage instructions.",
	},
	{
		Question: "What is a drug interaction?",
		Answer:   "A drug interaction occurs when a substance affects the activity of a drug when both are taken together. This can cause unexpected side effects or reduce the effectiveness of the medication.",
	},
	{
		Question: "How long does it take for a medication to start working?",
		Answer:   "The time it takes for a medication to start working varies depending on the drug and your individual body. Some work within minutes, others may take days or weeks to show full effects.",
	},
	{
		Question: "Is it safe to drink alcohol while taking medication?",
		Answer:   "Many medications can interact negatively with alcohol. It's best to avoid alcohol or consult with your doctor or pharmacist about potential interactions with your specific medications.",
	},
	{
		Question: "What's the difference between generic and brand-name drugs?",
		Answer:   "Generic drugs have the same active ingredients as brand-name drugs but are typically less expensive. They are required to be just as safe and effective as the brand-name version.",
	},
	{
		Question: "How can I remember to take my medication regularly?",
		Answer:   "Try setting daily alarms, using a pill organizer, or linking your medication time to a daily routine like brushing your teeth. There are also many smartphone apps designed to help with medication reminders.",
	},
}

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Answer busca la pregunta completa de la tabla como substring (case
// insensitive) dentro de la pregunta del usuario. La primera entrada que
// matchea gana; sin match se devuelve el fallback.
func (s *Service) Answer(question string) (string, bool) {
	lower := strings.ToLower(question)
	for _, e := range knowledgeBase {
		if strings.Contains(lower, strings.ToLower(e.Question)) {
			return e.Answer, true
		}
	}
	return FallbackAnswer, false
}
