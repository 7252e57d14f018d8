package enricher

import "fmt"

// buildPrompt asks for the three study fields of one word. The model may
// answer with the JSON object or with the labelled lines; both are parsed.
func buildPrompt(term, meaning string) string {
	return fmt.Sprintf(`You are an English teacher writing study notes for Chinese learners.

Word: "%s"
Meaning given in the word list: "%s"

Provide exactly three fields:
1. detail: a short core explanation of the word in Chinese (usage, collocations, common mistakes).
2. eg_en: one natural English example sentence using the word.
3. eg_cn: the Chinese translation of that example sentence.

Output ONLY a JSON object: {"detail": "...", "eg_en": "...", "eg_cn": "..."}
If you cannot produce JSON, answer with exactly three lines:
解析：...
例句：...
翻译：...`, term, meaning)
}
