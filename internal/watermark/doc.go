// Package watermark strips watermarks from the images of an episode directory.
//
// A Pipeline walks the images of one directory in name order and hands each
// of them to a Transform. Results replace the originals through a temp file
// plus rename. Progress is reported on the event bus as one Start, one Success
// or Error per image with a monotonically increasing current, and one End.
// The transform itself is opaque: CropTransform trims a fixed band off the
// bottom of every page and CommandTransform delegates to an external tool.
package watermark
