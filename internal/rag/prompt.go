package rag

import (
	"strings"

	"github.com/hyperjump/faqrag/internal/models"
)

// PromptTemplate instructs the model to answer only from the supplied context.
const PromptTemplate = `Sen, bir bankanın müşteri hizmetleri temsilcisisin. Sadece aşağıda verilen 'Bağlam' içindeki bilgilere dayanarak soruyu yanıtla. Bağlamda cevabı bulunmayan bir soru sorulursa, "Bu konuda bir bilgim bulunmuyor, lütfen bankanızla doğrudan iletişime geçin." de.

Bağlam:
{context}

Kullanıcı Sorusu: {question}
`

// FormatContext joins document contents with a blank line, keeping retrieval order.
func FormatContext(docs []models.IndexedDocument) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt fills the template. Placeholders inside the context or question are not expanded.
func BuildPrompt(context, question string) string {
	r := strings.NewReplacer("{context}", context, "{question}", question)
	return r.Replace(PromptTemplate)
}
