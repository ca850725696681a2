// Package resolve drives a document to a fixed point: each pass discovers the
// templated scalars, substitutes the first token of every one it can, and the
// run stops once nothing is left or a pass repeats the previous job signature.
package resolve
