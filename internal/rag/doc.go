// Package rag assembles the augmentation context for a question.
//
// The assembler fans a question embedding out to the requested corpora,
// merges the per-corpus matches, and greedily packs them into a
// size-bounded block. A corpus whose search fails contributes nothing;
// assembly degrades instead of aborting.
package rag
