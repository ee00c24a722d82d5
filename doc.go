// Package lingo is an embedded, single-file linguistic database: words,
// morphemes, phrases, and concepts laid out as points in a unit cube and
// addressed through a memory-mapped .lingo file, a spatial/hierarchical
// index, and a small query language compiled to bytecode.
//
// A database is opened with Open, queried with NewQuery's fluent chain
// compiled through (*DB).Compile, and executed with (*DB).Execute.
package lingo
