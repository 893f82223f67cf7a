package corpus

import (
	"github.com/google/uuid"

	"github.com/hyperjump/faqrag/internal/models"
)

// documentNamespace scopes content-derived document IDs.
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hyperjump/faqrag/documents"))

// Content returns the indexable text for a record: "Soru: <q>\nCevap: <a>".
func Content(r models.FAQRecord) string {
	return "Soru: " + r.Question + "\n" + "Cevap: " + r.Answer
}

// BuildDocument turns a record into an indexed document. The ID is derived from the content,
// so identical content maps to the same ID across builds.
func BuildDocument(r models.FAQRecord, source string) models.IndexedDocument {
	content := Content(r)
	return models.IndexedDocument{
		ID:      uuid.NewSHA1(documentNamespace, []byte(content)).String(),
		Content: content,
		Metadata: models.DocumentMetadata{
			SourceQuestion: r.Question,
			Source:         source,
		},
	}
}

// BuildDocuments maps records to documents, preserving order.
func BuildDocuments(records []models.FAQRecord, source string) []models.IndexedDocument {
	docs := make([]models.IndexedDocument, len(records))
	for i, r := range records {
		docs[i] = BuildDocument(r, source)
	}
	return docs
}
