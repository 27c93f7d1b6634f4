// Package bm25 implements the per-label inverted index spec.md §4.4
// describes: configurable tokenization, idempotent doc-level add/remove,
// and BM25 scoring (k1=1.2, b=0.75 defaults, both tunable per label).
// There is no teacher BM25 code to adapt — the postings/doc layout is
// grounded directly on the kv families pkg/codec builds keys for
// (bm25:postings, bm25:docs); query logic follows the standard Robertson/
// Spärck Jones BM25 formula spec.md names explicitly.
package bm25

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/herr"
	"github.com/helixdb/helix-core/pkg/ids"
	"github.com/helixdb/helix-core/pkg/kv"
)

// Tokenizer splits a document's text into index terms.
type Tokenizer func(string) []string

// DefaultTokenizer lowercases and splits on Unicode word boundaries
// (letters/digits are kept, everything else is a separator).
func DefaultTokenizer(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Params holds a label's tunable BM25 scoring constants.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams is spec.md §4.4's default (k1=1.2, b=0.75).
var DefaultParams = Params{K1: 1.2, B: 0.75}

// docTerm is one (term, tf) pair persisted in a bm25:docs value so a doc
// can later be removed without re-tokenizing text the caller no longer
// has — postings are keyed per-term, so removal needs the doc's term set.
type docTerm struct {
	Term string
	TF   uint32
}

// encodeDocValue packs doc_len followed by the doc's term list, extending
// spec.md §4.2's literal `doc_len(u32)` value with the bookkeeping needed
// for idempotent removal (documented in DESIGN.md).
func encodeDocValue(docLen uint32, terms []docTerm) []byte {
	out := codec.PutU32(nil, docLen)
	out = codec.PutU32(out, uint32(len(terms)))
	for _, t := range terms {
		out = codec.PutU16(out, uint16(len(t.Term)))
		out = append(out, t.Term...)
		out = codec.PutU32(out, t.TF)
	}
	return out
}

func decodeDocValue(b []byte) (docLen uint32, terms []docTerm, err error) {
	docLen, err = codec.U32(b)
	if err != nil {
		return 0, nil, err
	}
	b = b[4:]
	count, err := codec.U32(b)
	if err != nil {
		return 0, nil, err
	}
	b = b[4:]
	terms = make([]docTerm, 0, count)
	for i := uint32(0); i < count; i++ {
		termLen, err := codec.U16(b)
		if err != nil {
			return 0, nil, err
		}
		b = b[2:]
		if int(termLen) > len(b) {
			return 0, nil, herr.CorruptPayloadf(nil, "bm25 doc value truncated")
		}
		term := string(b[:termLen])
		b = b[termLen:]
		tf, err := codec.U32(b)
		if err != nil {
			return 0, nil, err
		}
		b = b[4:]
		terms = append(terms, docTerm{Term: term, TF: tf})
	}
	return docLen, terms, nil
}

// statsKey is the per-label aggregate (doc count, total length) cell
// stored in the meta family, needed for BM25's idf and avgdl terms.
func statsKey(labelHash uint32) []byte {
	return codec.PutU32([]byte("bm25_stats:"), labelHash)
}

type stats struct {
	DocCount    uint32
	TotalLength uint64
}

func readStats(txn kv.Reader, labelHash uint32) (stats, error) {
	b, err := txn.Get(kv.FamilyMeta, statsKey(labelHash))
	if err != nil {
		if kind, ok := herr.Of(err); ok && kind == herr.NotFound {
			return stats{}, nil
		}
		return stats{}, err
	}
	if len(b) != 12 {
		return stats{}, herr.CorruptPayloadf(nil, "malformed bm25 stats cell")
	}
	docCount, _ := codec.U32(b[0:4])
	hi, _ := codec.U32(b[4:8])
	lo, _ := codec.U32(b[8:12])
	return stats{DocCount: docCount, TotalLength: uint64(hi)<<32 | uint64(lo)}, nil
}

func writeStats(txn kv.WriteTxn, labelHash uint32, s stats) error {
	b := codec.PutU32(nil, s.DocCount)
	b = codec.PutU32(b, uint32(s.TotalLength>>32))
	b = codec.PutU32(b, uint32(s.TotalLength))
	return txn.Put(kv.FamilyMeta, statsKey(labelHash), b)
}

// RemoveDoc removes docID's postings and doc-length entry for labelHash.
// A no-op (not an error) if the doc was never added.
func RemoveDoc(txn kv.WriteTxn, labelHash uint32, docID ids.ID) error {
	b, err := txn.Get(kv.FamilyBM25Docs, codec.BM25DocKey(docID))
	if err != nil {
		if kind, ok := herr.Of(err); ok && kind == herr.NotFound {
			return nil
		}
		return err
	}
	docLen, terms, err := decodeDocValue(b)
	if err != nil {
		return err
	}
	for _, t := range terms {
		if err := txn.Delete(kv.FamilyBM25Postings, codec.BM25PostingKey(labelHash, t.Term, docID)); err != nil {
			return err
		}
	}
	if err := txn.Delete(kv.FamilyBM25Docs, codec.BM25DocKey(docID)); err != nil {
		return err
	}

	s, err := readStats(txn, labelHash)
	if err != nil {
		return err
	}
	if s.DocCount > 0 {
		s.DocCount--
	}
	if s.TotalLength >= uint64(docLen) {
		s.TotalLength -= uint64(docLen)
	}
	return writeStats(txn, labelHash, s)
}

// AddDoc (re-)indexes docID's text under labelHash, tokenized by tok.
// Overwrites any prior indexing of the same doc id (idempotent).
func AddDoc(txn kv.WriteTxn, labelHash uint32, docID ids.ID, text string, tok Tokenizer) error {
	if err := RemoveDoc(txn, labelHash, docID); err != nil {
		return err
	}
	tokens := tok(text)
	if len(tokens) == 0 {
		return nil
	}

	tf := make(map[string]uint32, len(tokens))
	for _, term := range tokens {
		tf[term]++
	}

	terms := make([]docTerm, 0, len(tf))
	for term, count := range tf {
		terms = append(terms, docTerm{Term: term, TF: count})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Term < terms[j].Term })

	for _, t := range terms {
		key := codec.BM25PostingKey(labelHash, t.Term, docID)
		if err := txn.Put(kv.FamilyBM25Postings, key, codec.BM25PostingValue(t.TF)); err != nil {
			return err
		}
	}

	docLen := uint32(len(tokens))
	if err := txn.Put(kv.FamilyBM25Docs, codec.BM25DocKey(docID), encodeDocValue(docLen, terms)); err != nil {
		return err
	}

	s, err := readStats(txn, labelHash)
	if err != nil {
		return err
	}
	s.DocCount++
	s.TotalLength += uint64(docLen)
	return writeStats(txn, labelHash, s)
}

// Hit is one scored query result.
type Hit struct {
	DocID ids.ID
	Score float64
}

// Query scores every document containing at least one term of queryText
// against labelHash's index using BM25, returning the topK highest-scoring
// hits in descending score order.
func Query(txn kv.Reader, labelHash uint32, queryText string, tok Tokenizer, params Params, topK int) ([]Hit, error) {
	s, err := readStats(txn, labelHash)
	if err != nil {
		return nil, err
	}
	if s.DocCount == 0 {
		return nil, nil
	}
	avgdl := float64(s.TotalLength) / float64(s.DocCount)

	queryTerms := dedupe(tok(queryText))
	scores := make(map[ids.ID]float64)
	docLens := make(map[ids.ID]uint32)

	for _, term := range queryTerms {
		prefix := codec.BM25TermPrefix(labelHash, term)
		it, err := txn.PrefixIter(kv.FamilyBM25Postings, prefix)
		if err != nil {
			return nil, err
		}
		var df uint32
		type posting struct {
			docID ids.ID
			tf    uint32
		}
		var postings []posting
		for it.Next() {
			pair := it.Pair()
			docID, err := codec.BM25PostingDocID(pair.Key)
			if err != nil {
				_ = it.Close()
				return nil, err
			}
			tf, err := codec.DecodeBM25PostingValue(pair.Value)
			if err != nil {
				_ = it.Close()
				return nil, err
			}
			postings = append(postings, posting{docID: docID, tf: tf})
			df++
		}
		if err := it.Err(); err != nil {
			_ = it.Close()
			return nil, err
		}
		_ = it.Close()

		idf := idfWeight(s.DocCount, df)
		for _, p := range postings {
			if _, ok := docLens[p.docID]; !ok {
				docLen, err := docLength(txn, p.docID)
				if err != nil {
					return nil, err
				}
				docLens[p.docID] = docLen
			}
			docLen := docLens[p.docID]
			num := float64(p.tf) * (params.K1 + 1)
			den := float64(p.tf) + params.K1*(1-params.B+params.B*float64(docLen)/avgdl)
			scores[p.docID] += idf * num / den
		}
	}

	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		hits = append(hits, Hit{DocID: docID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID.Compare(hits[j].DocID) < 0
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func docLength(txn kv.Reader, docID ids.ID) (uint32, error) {
	b, err := txn.Get(kv.FamilyBM25Docs, codec.BM25DocKey(docID))
	if err != nil {
		return 0, err
	}
	docLen, _, err := decodeDocValue(b)
	return docLen, err
}

func idfWeight(docCount, df uint32) float64 {
	// The standard BM25 idf with a +1 inside the log to keep it
	// non-negative for terms appearing in every document.
	n := float64(docCount)
	return math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
