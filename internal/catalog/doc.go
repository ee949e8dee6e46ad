// Package catalog is a thin JSON client for the comic catalog's twirp
// endpoints: keyword search, comic details with the episode list, the image
// index of an episode, and the tokens that authorize image downloads.
//
// Every response is wrapped in a {code, msg, data} envelope; a non-zero code
// is reported as an external-service error. Catalog titles are turned into
// filesystem-safe names here so every caller agrees on directory names.
package catalog
