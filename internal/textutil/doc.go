// Package textutil provides the text rules for turning catalog titles into
// file and directory names.
//
// Titles are NFC-normalized and characters that are unsafe on common
// filesystems are swapped for visually similar full-width forms rather than
// dropped, so directory names stay readable next to the titles shown in the
// catalog.
package textutil
