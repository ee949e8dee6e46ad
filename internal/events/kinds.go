package events

import "fmt"

// Kind enumerates every event the downloader publishes.
type Kind int

const (
	KindInvalid Kind = iota
	KindEpisodePending
	KindEpisodeStart
	KindEpisodeEnd
	KindImageSuccess
	KindImageError
	KindOverallProgress
	KindDownloadSpeed
	KindWatermarkStart
	KindWatermarkSuccess
	KindWatermarkError
	KindWatermarkEnd
	kindCount
)

// kindNames holds the stable wire names. They never change once published.
var kindNames = [kindCount]string{
	KindEpisodePending:   "download-episode-pending-event",
	KindEpisodeStart:     "download-episode-start-event",
	KindEpisodeEnd:       "download-episode-end-event",
	KindImageSuccess:     "download-image-success-event",
	KindImageError:       "download-image-error-event",
	KindOverallProgress:  "update-overall-download-progress-event",
	KindDownloadSpeed:    "download-speed-event",
	KindWatermarkStart:   "remove-watermark-start-event",
	KindWatermarkSuccess: "remove-watermark-success-event",
	KindWatermarkError:   "remove-watermark-error-event",
	KindWatermarkEnd:     "remove-watermark-end-event",
}

var kindsByName = func() map[string]Kind {
	out := make(map[string]Kind, len(kindNames))
	for k := KindInvalid + 1; k < kindCount; k++ {
		out[kindNames[k]] = k
	}
	return out
}()

// Name returns the wire name of the event kind.
func (k Kind) Name() string {
	if !k.Valid() {
		return ""
	}
	return kindNames[k]
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k names a registered event.
func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// Lookup resolves a wire name to its Kind.
func Lookup(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// Kinds lists every registered kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, int(kindCount)-1)
	for k := KindInvalid + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}
