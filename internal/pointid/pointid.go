// Package pointid provides deterministic identifiers for chunks and transcript entries.
package pointid

import (
	"strconv"

	"github.com/google/uuid"
)

// namespace scopes chunk UUIDs to this application.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hyperjump/ytrag/chunk"))

// ChunkID returns a stable UUID for the chunk at index within videoID's collection.
// Same inputs always yield the same ID, so re-inserting a chunk overwrites it.
func ChunkID(videoID string, index int) string {
	return uuid.NewSHA1(namespace, []byte(videoID+":"+strconv.Itoa(index))).String()
}

// EntryID returns the keyword-index document ID for a transcript entry.
func EntryID(videoID string, index int) string {
	return videoID + ":" + strconv.Itoa(index)
}
