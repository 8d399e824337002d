// Package siamese implements a single-object Siamese tracker with
// anchor-free point regression.
//
// A Tracker is initialized with a box on one frame. Every later frame it
// crops a search region around the previous position, asks a Model for
// per-candidate scores and box offsets on a fixed grid, picks the best
// candidate under a scale/aspect penalty blended with a Hann window, and
// smooths the object size toward it.
//
// The neural network is behind the two-method Model interface, so the
// package is testable with a deterministic stub.
package siamese
