// Package policy holds the caching configuration model: route patterns with
// per-route defaults, the per-request scope written by the embedding
// application, and the merge of both into one effective policy.
//
// Resolution is deliberately deferred: defaults() and set() calls only
// accumulate layers, and Resolve folds them exactly once when the response
// is finalized, so call order can never race.
package policy
