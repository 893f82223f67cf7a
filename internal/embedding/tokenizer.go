package embedding

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer produces token IDs for transformer models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs (for testing or fallback).
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	ids := make([]int64, 0, len(text)/4)
	for _, word := range Words(text) {
		ids = append(ids, int64(HashString(word)%30000))
	}
	return pack(ids, maxTokens, 101, 102, 0)
}

// LoadTokenizer reads a Hugging Face tokenizer.json (Unigram or WordPiece model) or a
// WordPiece vocab.txt, chosen by file extension.
func LoadTokenizer(path string) (Tokenizer, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadTokenizerJSON(path)
	}
	return LoadVocabTokenizer(path)
}

type tokenizerFile struct {
	Normalizer *struct {
		Type      string `json:"type"`
		Lowercase *bool  `json:"lowercase"`
	} `json:"normalizer"`
	Model struct {
		Type  string          `json:"type"`
		UnkID *int            `json:"unk_id"`
		Vocab json.RawMessage `json:"vocab"`
	} `json:"model"`
}

// LoadTokenizerJSON reads a tokenizer.json as exported by Hugging Face tokenizers.
func LoadTokenizerJSON(path string) (Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}
	var f tokenizerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}
	switch f.Model.Type {
	case "Unigram":
		var raw [][]json.RawMessage
		if err := json.Unmarshal(f.Model.Vocab, &raw); err != nil {
			return nil, fmt.Errorf("parse unigram vocab: %w", err)
		}
		entries := make([]UnigramEntry, len(raw))
		for i, pair := range raw {
			if len(pair) != 2 {
				return nil, fmt.Errorf("unigram vocab entry %d: want [piece, score]", i)
			}
			if err := json.Unmarshal(pair[0], &entries[i].Piece); err != nil {
				return nil, fmt.Errorf("unigram vocab entry %d: %w", i, err)
			}
			if err := json.Unmarshal(pair[1], &entries[i].Score); err != nil {
				return nil, fmt.Errorf("unigram vocab entry %d: %w", i, err)
			}
		}
		unkID := -1
		if f.Model.UnkID != nil {
			unkID = *f.Model.UnkID
		}
		return NewUnigramTokenizer(entries, unkID)
	case "WordPiece":
		var vocab map[string]int64
		if err := json.Unmarshal(f.Model.Vocab, &vocab); err != nil {
			return nil, fmt.Errorf("parse wordpiece vocab: %w", err)
		}
		lowercase := !hasCasedTokens(vocab)
		if f.Normalizer != nil && f.Normalizer.Lowercase != nil {
			lowercase = *f.Normalizer.Lowercase
		}
		return NewVocabTokenizer(vocab, lowercase)
	default:
		return nil, fmt.Errorf("unsupported tokenizer model %q (supported: Unigram, WordPiece)", f.Model.Type)
	}
}

// VocabTokenizer is a WordPiece tokenizer: BERT-style pre-tokenization followed by greedy
// longest-match subwords with "##" continuations.
type VocabTokenizer struct {
	vocab     map[string]int64
	clsID     int64
	sepID     int64
	padID     int64
	unkID     int64
	lowercase bool
}

// maxWordChars matches the WordPiece default; longer words map to [UNK].
const maxWordChars = 100

// LoadVocabTokenizer reads a WordPiece vocabulary file (one token per line, line number = ID).
// A vocabulary without upper-case tokens is treated as uncased.
func LoadVocabTokenizer(path string) (*VocabTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	var id int64
	for scanner.Scan() {
		tok := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return NewVocabTokenizer(vocab, !hasCasedTokens(vocab))
}

// NewVocabTokenizer builds a WordPiece tokenizer from an in-memory vocabulary.
// lowercase selects uncased models, which also strip accents.
func NewVocabTokenizer(vocab map[string]int64, lowercase bool) (*VocabTokenizer, error) {
	if len(vocab) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}
	t := &VocabTokenizer{vocab: vocab, lowercase: lowercase}
	var ok bool
	if t.clsID, ok = vocab["[CLS]"]; !ok {
		return nil, fmt.Errorf("vocabulary has no [CLS] token")
	}
	if t.sepID, ok = vocab["[SEP]"]; !ok {
		return nil, fmt.Errorf("vocabulary has no [SEP] token")
	}
	if t.unkID, ok = vocab["[UNK]"]; !ok {
		return nil, fmt.Errorf("vocabulary has no [UNK] token")
	}
	t.padID = vocab["[PAD]"]
	return t, nil
}

// Tokenize converts text into padded subword IDs.
func (t *VocabTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	var ids []int64
	for _, word := range basicSplit(text, t.lowercase) {
		ids = append(ids, t.wordIDs(word)...)
	}
	return pack(ids, maxTokens, t.clsID, t.sepID, t.padID)
}

func (t *VocabTokenizer) wordIDs(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int64{t.unkID}
	}
	var ids []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		matched := false
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				ids = append(ids, id)
				matched = true
				break
			}
			end--
		}
		if !matched {
			return []int64{t.unkID}
		}
		start = end
	}
	return ids
}

// basicSplit splits on whitespace and isolates punctuation, as BERT's basic tokenizer does.
// Case is kept unless lowercase is set.
func basicSplit(text string, lowercase bool) []string {
	if lowercase {
		text = stripAccents(strings.ToLower(text))
	}
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == 0 || r == unicode.ReplacementChar || unicode.IsControl(r):
		case isPunctuation(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// isPunctuation treats all non-alphanumeric ASCII as punctuation, plus Unicode P* categories.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func stripAccents(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if !unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hasCasedTokens(vocab map[string]int64) bool {
	for tok := range vocab {
		if strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") {
			continue
		}
		for _, r := range tok {
			if unicode.IsUpper(r) {
				return true
			}
		}
	}
	return false
}

// UnigramEntry is one SentencePiece vocabulary piece with its log probability.
type UnigramEntry struct {
	Piece string
	Score float64
}

type unigramPiece struct {
	id    int64
	score float64
}

// UnigramTokenizer is a SentencePiece Unigram tokenizer (XLM-R style): NFKC normalization,
// "▁" word prefixes and Viterbi segmentation that maximizes the summed piece scores.
type UnigramTokenizer struct {
	pieces      map[string]unigramPiece
	maxPieceLen int
	bosID       int64
	eosID       int64
	padID       int64
	unkID       int64
	unkScore    float64
}

const sentencePieceMark = "▁"

// NewUnigramTokenizer builds a tokenizer from vocab, where the index of an entry is its ID.
// A negative unkID looks up "<unk>".
func NewUnigramTokenizer(vocab []UnigramEntry, unkID int) (*UnigramTokenizer, error) {
	if len(vocab) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}
	t := &UnigramTokenizer{pieces: make(map[string]unigramPiece, len(vocab))}
	minScore := math.Inf(1)
	for i, e := range vocab {
		if _, dup := t.pieces[e.Piece]; !dup {
			t.pieces[e.Piece] = unigramPiece{id: int64(i), score: e.Score}
		}
		if n := len([]rune(e.Piece)); n > t.maxPieceLen {
			t.maxPieceLen = n
		}
		if e.Score < minScore {
			minScore = e.Score
		}
	}
	t.unkScore = minScore - 10

	special := func(name string) (int64, error) {
		p, ok := t.pieces[name]
		if !ok {
			return 0, fmt.Errorf("vocabulary has no %s token", name)
		}
		return p.id, nil
	}
	var err error
	if t.bosID, err = special("<s>"); err != nil {
		return nil, err
	}
	if t.eosID, err = special("</s>"); err != nil {
		return nil, err
	}
	if t.padID, err = special("<pad>"); err != nil {
		return nil, err
	}
	switch {
	case unkID >= len(vocab):
		return nil, fmt.Errorf("unk_id %d out of range", unkID)
	case unkID >= 0:
		t.unkID = int64(unkID)
	default:
		if t.unkID, err = special("<unk>"); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Tokenize converts text into padded piece IDs wrapped in <s> and </s>.
func (t *UnigramTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	var ids []int64
	for _, word := range strings.Fields(norm.NFKC.String(text)) {
		ids = append(ids, t.segment(sentencePieceMark+word)...)
	}
	return pack(ids, maxTokens, t.bosID, t.eosID, t.padID)
}

// segment returns the highest-scoring piece sequence for word. Characters no piece covers
// become <unk>; adjacent unknowns collapse into one.
func (t *UnigramTokenizer) segment(word string) []int64 {
	runes := []rune(word)
	n := len(runes)
	best := make([]float64, n+1)
	prev := make([]int, n+1)
	ids := make([]int64, n+1)
	for i := 1; i <= n; i++ {
		best[i] = math.Inf(-1)
	}
	for start := 0; start < n; start++ {
		if math.IsInf(best[start], -1) {
			continue
		}
		single := false
		for end := start + 1; end <= n && end-start <= t.maxPieceLen; end++ {
			p, ok := t.pieces[string(runes[start:end])]
			if !ok {
				continue
			}
			if end == start+1 {
				single = true
			}
			if s := best[start] + p.score; s > best[end] {
				best[end], prev[end], ids[end] = s, start, p.id
			}
		}
		if !single {
			if s := best[start] + t.unkScore; s > best[start+1] {
				best[start+1], prev[start+1], ids[start+1] = s, start, t.unkID
			}
		}
	}

	var rev []int64
	for end := n; end > 0; end = prev[end] {
		rev = append(rev, ids[end])
	}
	out := make([]int64, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		if rev[i] == t.unkID && len(out) > 0 && out[len(out)-1] == t.unkID {
			continue
		}
		out = append(out, rev[i])
	}
	return out
}

// pack wraps ids in cls/sep, truncates to maxTokens and pads the rest with pad.
func pack(ids []int64, maxTokens int, cls, sep, pad int64) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i := range inputIDs {
		inputIDs[i] = pad
	}

	inputIDs[0] = cls
	attentionMask[0] = 1
	pos := 1
	for _, id := range ids {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = id
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = sep
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// Words lower-cases text with Turkish casing rules and splits it into runs of letters and digits.
// It feeds the hashing embedder and SimpleTokenizer, not the model vocabularies.
func Words(text string) []string {
	lower := strings.ToLowerSpecial(unicode.TurkishCase, text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
}

// HashString returns a deterministic non-negative hash for use as a simple token ID.
func HashString(s string) int {
	var h uint32
	for _, c := range s {
		h = 31*h + uint32(c)
	}
	return int(h & 0x7fffffff)
}
