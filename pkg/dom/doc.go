// Package dom provides a headless document object model for brick components.
//
// A Document owns a tree of golang.org/x/net/html nodes and serializes every
// read and write to it, so components running on different goroutines observe
// each mutation atomically. Elements are stable handles over those nodes: the
// same *html.Node maps to the same *Element for as long as that handle is
// referenced. Event listeners and mutation observers live on the handle, so
// the document keeps handles that carry them alive while their node is in
// the tree. Handles of removed nodes are held weakly and collected with them.
//
// # Features
//
// The package implements the subset of the browser DOM that the component
// runtime relies on:
//
//   - attributes, class lists, and a live dataset view over data-* attributes
//   - child list manipulation, deep cloning, and atomic child replacement
//   - inert fragment parsing (markup is parsed in a template context and never executed)
//   - CSS selector queries, translated to XPath and evaluated by htmlquery
//   - custom events that bubble from a target through its ancestors
//   - attribute mutation observers with deferred, batched delivery
//
// Mutation observer callbacks never run synchronously with the write that
// caused them. Records are queued and handed to a per-document delivery
// goroutine, mirroring the microtask timing of the browser API. Call
// Document.Close to stop that goroutine.
//
// # Detachment
//
// Document.OnDetach registers callbacks that run for every element handle in a
// subtree removed from its parent. The brick registry uses this to release
// controllers of nodes that left the tree.
package dom
