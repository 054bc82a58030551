package pipeline

import "fmt"

func decisionPrompt(conversation string, chance int) string {
	return fmt.Sprintf(`CHAT (you are an AI bot, you are addressed as "бот", "AI", "ИИ"):
%s

Do you (the bot) need to respond now?
Chance to intervene for no reason: %d%%

(YES) if:
1. THEY ADDRESS YOU: "бот", "AI", "ИИ", "помоги", "подскажи"
2. THERE IS A QUESTION: "Что", "Как", "Почему", "Кто", "Когда"
3. ASK FOR HELP: "Я не знаю", "Не понимаю", "Помоги"
4. DISPUTE: different opinions, conflict
5. %d%% chance to add a line if the topic is interesting

(NO) if:
1. JOKES: just laughing, joking
2. CHATTER: ordinary conversation without questions
3. DISCUSS SOMETHING ELSE: the topic does not require your participation

IMPORTANT: If the words "AI-бот", "Бот", "ИИ", "AI" appear in the text it is almost always YES!

Answer ONLY in this format: DECISION | REASON where:
DECISION: YES or NO
REASON: a brief reason (3-5 words)

Examples:
YES | Contacted the bot
YES | Have a question
NO | Just joking
`, conversation, chance, chance)
}

func contextPrompt(conversation string) string {
	return fmt.Sprintf(`Messages: "%s"

Analyze and respond in Russian BUT use this exact format:
Topic=[code/greeting/work/humor/other]
Type=[question/statement/joke]
Mood=[friendly/neutral/funny/serious/angry]
Theme= Write the topic of the conversation in a few words

DO NOT ADD ANY OTHER TEXT!

Example output:
Topic=greeting Type=question Mood=friendly Theme=Food Choices
Topic=code Type=question Mood=serious Theme=Python decorators
`, conversation)
}

func classifyPrompt(message string) string {
	return fmt.Sprintf(`Analyze if this Russian message is about programming/coding/IT/databases:

Message: "%s"

Answer with JSON ONLY:
{
  "is_programming": true/false,
  "confidence": 0.0-1.0
}

Examples:
Message: "Что такое классы в Python?"
Response: {"is_programming": true, "confidence": 0.95}

Message: "Какой сегодня день?"
Response: {"is_programming": false, "confidence": 0.99}

Your JSON response:`, message)
}

func replyPrompt(conversation, contextLine string) string {
	return fmt.Sprintf(`Ты - дружелюбный помощник в чате. Твоё имя - AI-бот.
С тобой общаются в XMPP-чате, весело отвечай на вопросы.
Отвечай ТОЛЬКО на последнее сообщение от первого лица.

КОНТЕКСТ БЕСЕДЫ:
%s

ПОСЛЕДНИЕ СООБЩЕНИЯ:
%s

ПРАВИЛА ОТВЕТА:
1. Отвечай от первого лица (я, мне, мой)
2. Отвечай средними предложениями (3-4 предложения)
3. Соответствуй настроению и стилю общения чата
4. Не подписывайся и не добавляй префиксы!

ВАЖНО: Не пытайся ответить на все сообщения сразу! Только на последнее.

Всегда давай понятный и чёткий ответ на русском языке!

Твой ответ строго в формате сплошного текста:`, contextLine, conversation)
}

func codePrompt(question string) string {
	return fmt.Sprintf(`User asks in Russian: %s

You are an AI programming assistant. Respond in Russian.

Keep your answer:
- Short and clear
- In Russian language
- With a simple example if needed
- If you write code, put 3 backticks before and after it
- Don't repeat the user question!

Answer ONLY in Russian:`, question)
}
