package ranking

import "strings"

// StripPassageID drops a trailing "-<digits>" passage offset from a document id
// ("CAR_abc-12" -> "CAR_abc"), for runs evaluated against document-level qrels.
// Ids without such a suffix are returned unchanged.
func StripPassageID(docID string) string {
	i := strings.LastIndexByte(docID, '-')
	if i <= 0 || i == len(docID)-1 {
		return docID
	}
	for _, c := range docID[i+1:] {
		if c < '0' || c > '9' {
			return docID
		}
	}
	return docID[:i]
}
