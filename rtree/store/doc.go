// File layout produced by rtree.Tree.SaveTo:
//
//	[0, HeaderSize)                                   Header
//	[HeaderSize, +8*NumLevels)                          level bounds, uint64 each
//	[..., +56*NumBoxes)                                 tree nodes: 6 float64 (box) + int64 (index) each
//	[..., +ItemSize*NumItems)                           codec-encoded items
//
// Loading mmaps the whole file read-only and decodes only the small,
// fixed-size header and level-bounds prefix up front; the node array and
// the codec-encoded item array are left as views over the mapped bytes
// and decoded one record at a time, on access, by rtree's
// decodeTreeFromBytes. A query therefore only faults in the pages under
// the specific nodes and items it actually visits, not the whole file —
// this is what lets a tree larger than RAM be opened and queried at all.
// Item decoding is not zero-copy, though: unlike a fixed-width float32
// vector block, Indexable's T has no guaranteed on-wire layout to
// reinterpret via unsafe, so each visited item still pays one
// codec.Decode call, just not one for every item in the file up front.
package store
