// Package chunker divides parsed documentation into token-budgeted chunks
// for embedding and search.
//
// The chunker works on heading-delimited sections rather than raw text, so
// chunk boundaries follow the document's own structure whenever the token
// budget allows.
//
// # Basic Usage
//
//	c, err := chunker.New(counter, chunker.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	chunks, err := c.ChunkDocument(doc)
//	for _, chunk := range chunks {
//	    fmt.Printf("%s: %d tokens\n", chunk.SectionHeading, chunk.TokenCount)
//	}
//
// # Chunking Strategy
//
// Consecutive small sections aggregate into one chunk until the next section
// would push the buffer past MaxTokens. A buffer may run over MaxTokens by up
// to 20% when that lets a whole section join instead of being split. Chunks
// built from several sections take the first section's heading with a
// "(+N more)" suffix.
//
// A single section larger than the tolerated budget splits into token
// windows of MaxTokens with OverlapTokens of trailing context carried into
// each following window.
//
// A trailing buffer smaller than MinTokens merges into the previously
// emitted chunk so no undersized chunk reaches storage.
//
// Token counts come from the tokenizer package's cl100k_base encoding, the
// same encoding the storage layer records per chunk.
package chunker
