// Package asar reads and writes asar archives.
//
// An archive is a JSON header describing a directory tree, framed in two
// Chromium pickles, followed by the concatenated bodies of every sealed file:
//
//	uint32 4 | uint32 len(header pickle) | header pickle | bodies...
//
// The header pickle carries its payload size, the JSON string length and the
// JSON text padded to four bytes. File nodes record their size, their offset
// relative to the end of the header, and a SHA256 integrity record hashed in
// 4MiB blocks. Files marked unpacked keep their header node but have no body
// in the archive; they live in a sibling directory named after the archive
// with an ".unpacked" suffix.
//
// Create takes the list of files to store in the order their bodies should
// appear. Ordering is the caller's concern; this package only encodes.
package asar
