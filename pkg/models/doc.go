// Package models defines the backend entities shown by the list screens and
// the signed-in user.
//
// Decoding is tolerant where the backend is inconsistent: counters may arrive
// as numbers or numeric strings, money amounts as strings, and timestamps with
// or without milliseconds.
package models
