package corpus

import "fmt"

// RetrievalError reports a failed similarity search against one corpus.
// Callers degrade gracefully: a failing corpus contributes zero items to
// context assembly while the others proceed.
type RetrievalError struct {
	Corpus Corpus
	Err    error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("corpus %s: retrieval failed: %v", e.Corpus, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
