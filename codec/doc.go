// Package codec defines the boundary between documents and bytes.
//
// Every format lives in its own subpackage and registers itself on import:
//
//	import (
//		"github.com/wippyai/docmap/codec"
//		_ "github.com/wippyai/docmap/codec/jsoncodec"
//	)
//
//	c, err := codec.Lookup("json")
//	data, err := c.Encode(doc)
//
// Codecs preserve the document value model: integers decode as int64,
// floats as float64, mappings as *docmap.Document and sequences as []any.
// Formats that cannot keep key order or the integer/float distinction
// document the loss on their package.
package codec
